/*
 * Copyright (c) 2023 Zander Schwid & Co. LLC.
 * SPDX-License-Identifier: BUSL-1.1
 */

package cdi

import (
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
	"io"
	"os"
	"time"
)

var (
	DefaultConversationTimeout     = 30 * time.Minute
	DefaultConcurrentAccessTimeout = time.Second
)

/**
Config of the deployment, the counterpart of a deployment descriptor.

Example:
	alternatives:
	  - mockPayment
	conversationTimeout: 10m
	concurrentAccessTimeout: 500ms
	logLevel: debug
*/
type Config struct {

	/**
	Ids of enabled alternatives without priority
	*/
	Alternatives []string `yaml:"alternatives,omitempty"`

	/**
	Ids of enabled decorators without priority, in invocation order
	*/
	Decorators []string `yaml:"decorators,omitempty"`

	/**
	Ids of enabled interceptors without priority, in invocation order
	*/
	Interceptors []string `yaml:"interceptors,omitempty"`

	/**
	Idle time after which a long-running conversation is destroyed
	*/
	ConversationTimeout time.Duration `yaml:"conversationTimeout,omitempty"`

	/**
	Time a unit of work waits for a conversation used by another one
	*/
	ConcurrentAccessTimeout time.Duration `yaml:"concurrentAccessTimeout,omitempty"`

	/**
	Logrus level of the container logger, used when no Verbose option given
	*/
	LogLevel string `yaml:"logLevel,omitempty"`
}

func DefaultConfig() *Config {
	return &Config{
		ConversationTimeout:     DefaultConversationTimeout,
		ConcurrentAccessTimeout: DefaultConcurrentAccessTimeout,
	}
}

/**
LoadConfig decodes YAML on top of the defaults
*/
func LoadConfig(r io.Reader) (*Config, error) {
	conf := DefaultConfig()
	if err := yaml.NewDecoder(r).Decode(conf); err != nil && err != io.EOF {
		return nil, errors.Wrap(err, "decode config")
	}
	return conf, nil
}

func LoadConfigFile(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Errorf("i/o error with config file '%s', %v", path, err)
	}
	defer file.Close()
	return LoadConfig(file)
}

func (t *Config) apply(c *container) {
	if t != nil {
		c.config = t
	}
}

func (t *Config) enabledIndex(list []string, id string) int {
	for i, el := range list {
		if el == id {
			return i
		}
	}
	return -1
}
