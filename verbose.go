/*
 * Copyright (c) 2023 Zander Schwid & Co. LLC.
 * SPDX-License-Identifier: BUSL-1.1
 */

package cdi

import (
	"github.com/sirupsen/logrus"
	"io"
)

/**
Use this option to trace the container. Best way is to use it first in the scan list.
*/
type Verbose struct {

	/**
	Use this logger to verbose, nil means silent
	*/
	Log logrus.FieldLogger
}

func (t Verbose) apply(c *container) {
	if t.Log != nil {
		c.log = t.Log
		c.verbose = true
	}
}

func silentLogger() logrus.FieldLogger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	log.SetLevel(logrus.PanicLevel)
	return log
}

/**
Logger writing to stderr with the level name, for example 'debug'
*/
func NewLogger(level string) (*logrus.Logger, error) {
	log := logrus.New()
	if level != "" {
		lvl, err := logrus.ParseLevel(level)
		if err != nil {
			return nil, err
		}
		log.SetLevel(lvl)
	}
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return log, nil
}
