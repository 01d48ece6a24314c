/*
 * Copyright (c) 2023 Zander Schwid & Co. LLC.
 * SPDX-License-Identifier: BUSL-1.1
 */

package main

import (
	"fmt"
	"github.com/codeallergy/cdi"
	"github.com/codeallergy/cdi/manifest"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"io"
	"os"
)

type cli struct {
	rootCmd *cobra.Command

	configPath string
	logLevel   string

	log *logrus.Logger
	out io.Writer
}

func newCLI(out io.Writer) *cli {
	c := &cli{out: out}

	c.rootCmd = &cobra.Command{
		Use:               "cdictl",
		Short:             "cdictl validates and explores cdi deployment manifests",
		SilenceUsage:      true,
		PersistentPreRunE: c.setup,
	}
	c.rootCmd.PersistentFlags().StringVar(&c.configPath, "config", "", "yaml config overriding the config section of the manifest")
	c.rootCmd.PersistentFlags().StringVar(&c.logLevel, "log_level", "info", "Log everything at this level and above (error|info|debug)")

	c.addCmd(&validateCmd{})
	c.addCmd(&resolveCmd{})
	c.addCmd(&observersCmd{})
	c.addCmd(&simulateCmd{})
	c.addCmd(&describeCmd{})
	return c
}

func (c *cli) Exec(args []string) error {
	c.rootCmd.SetArgs(args)
	c.rootCmd.SetOut(c.out)
	return c.rootCmd.Execute()
}

func (c *cli) setup(cmd *cobra.Command, args []string) error {
	log, err := cdi.NewLogger(c.logLevel)
	if err != nil {
		return errors.Wrapf(err, "invalid log level '%s'", c.logLevel)
	}
	log.SetOutput(os.Stderr)
	c.log = log
	return nil
}

/**
Loads the manifest given as the first argument and applies the config file if any
*/
func (c *cli) load(args []string) (*manifest.Manifest, error) {
	if len(args) != 1 {
		return nil, errors.New("a manifest file must be provided")
	}
	m, err := manifest.ParseFile(args[0])
	if err != nil {
		return nil, err
	}
	if c.configPath != "" {
		conf, err := cdi.LoadConfigFile(c.configPath)
		if err != nil {
			return nil, err
		}
		m.Config = conf
	}
	return m, nil
}

/**
Hooks tracing stub creation and destruction to the log
*/
func (c *cli) hooks() manifest.Hooks {
	return manifest.Hooks{
		Created: func(b *cdi.Bean, obj interface{}) {
			c.log.WithFields(logrus.Fields{"bean": b.ID(), "scope": b.Scope()}).Info("Created")
		},
		Destroyed: func(b *cdi.Bean, obj interface{}) {
			c.log.WithFields(logrus.Fields{"bean": b.ID(), "scope": b.Scope()}).Info("Destroyed")
		},
		Notified: func(o *cdi.Observer, event interface{}, meta cdi.EventMetadata) {
			c.log.WithFields(logrus.Fields{"observer": o.ID(), "event": meta.Types}).Info("Notified")
		},
	}
}

func (c *cli) deployment(m *manifest.Manifest) (*cdi.Deployment, error) {
	var opts []cdi.Option
	if c.log.IsLevelEnabled(logrus.DebugLevel) {
		opts = append(opts, cdi.Verbose{Log: c.log})
	}
	return m.Deployment(c.hooks(), opts...)
}

func (c *cli) printf(format string, args ...interface{}) {
	fmt.Fprintf(c.out, format, args...)
}

func (c *cli) addCmd(cmd command) {
	cobraCmd := cmd.registerFlags()
	cobraCmd.RunE = func(innerCmd *cobra.Command, args []string) error {
		return cmd.run(c, innerCmd, args)
	}
	c.rootCmd.AddCommand(cobraCmd)
}

type command interface {
	registerFlags() *cobra.Command
	run(cl *cli, cmd *cobra.Command, args []string) error
}
