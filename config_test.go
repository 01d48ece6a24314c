/*
 * Copyright (c) 2023 Zander Schwid & Co. LLC.
 * SPDX-License-Identifier: BUSL-1.1
 */

package cdi_test

import (
	"context"
	"github.com/codeallergy/cdi"
	"github.com/stretchr/testify/require"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

var configFileYAML = `
alternatives:
  - memory
decorators:
  - polite
  - loud
interceptors:
  - audit
conversationTimeout: 10m
concurrentAccessTimeout: 250ms
logLevel: warn
`

func TestLoadConfig(t *testing.T) {

	conf, err := cdi.LoadConfig(strings.NewReader(configFileYAML))
	require.NoError(t, err)

	require.Equal(t, []string{"memory"}, conf.Alternatives)
	require.Equal(t, []string{"polite", "loud"}, conf.Decorators)
	require.Equal(t, []string{"audit"}, conf.Interceptors)
	require.Equal(t, 10*time.Minute, conf.ConversationTimeout)
	require.Equal(t, 250*time.Millisecond, conf.ConcurrentAccessTimeout)
	require.Equal(t, "warn", conf.LogLevel)
}

func TestLoadConfigDefaults(t *testing.T) {

	conf, err := cdi.LoadConfig(strings.NewReader(""))
	require.NoError(t, err)
	require.Equal(t, cdi.DefaultConversationTimeout, conf.ConversationTimeout)
	require.Equal(t, cdi.DefaultConcurrentAccessTimeout, conf.ConcurrentAccessTimeout)
	require.Equal(t, 0, len(conf.Alternatives))

	conf, err = cdi.LoadConfig(strings.NewReader("alternatives: [memory]\n"))
	require.NoError(t, err)
	require.Equal(t, cdi.DefaultConversationTimeout, conf.ConversationTimeout)

	_, err = cdi.LoadConfig(strings.NewReader("alternatives: {"))
	require.Error(t, err)
	require.True(t, strings.HasPrefix(err.Error(), "decode config"))
}

func TestLoadConfigFile(t *testing.T) {

	path := filepath.Join(t.TempDir(), "cdi.yaml")
	require.NoError(t, os.WriteFile(path, []byte(configFileYAML), 0600))

	conf, err := cdi.LoadConfigFile(path)
	require.NoError(t, err)
	require.Equal(t, []string{"memory"}, conf.Alternatives)

	_, err = cdi.LoadConfigFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	require.True(t, strings.Contains(err.Error(), "i/o error with config file"))
}

func TestConfigAlternatives(t *testing.T) {

	conf, err := cdi.LoadConfig(strings.NewReader("alternatives: [memory]\n"))
	require.NoError(t, err)

	c, err := cdi.New(
		conf,
		storage("mysql"),
		storage("memory").Alternative(),
	)
	require.NoError(t, err)
	defer c.Shutdown()

	require.Equal(t, "memory", resolvedID(t, c, StorageType))
}

func TestConfigUnknownAlternative(t *testing.T) {

	_, err := cdi.New(
		&cdi.Config{Alternatives: []string{"mysql", "oracle"}},
		storage("mysql"),
	)
	require.Error(t, err)

	derr, ok := err.(*cdi.DeploymentError)
	require.True(t, ok)
	require.Equal(t, 2, len(derr.Errors))
	require.Equal(t, "definition error of 'mysql', configured bean is not an alternative", derr.Errors[0].Error())
	require.Equal(t, "definition error of 'oracle', configured bean not found, expected an alternative", derr.Errors[1].Error())
}

func TestConfigLogLevel(t *testing.T) {

	_, err := cdi.New(&cdi.Config{LogLevel: "loud"})
	require.Error(t, err)

	derr, ok := err.(*cdi.DeploymentError)
	require.True(t, ok)
	require.Equal(t, 1, len(derr.Errors))
	require.True(t, strings.HasPrefix(derr.Errors[0].Error(), "config logLevel"))
}

func TestConfigConversationTimeout(t *testing.T) {

	c, err := cdi.New(&cdi.Config{ConversationTimeout: time.Minute})
	require.NoError(t, err)
	defer c.Shutdown()

	ctx, err := c.ConversationScope().Activate(context.Background(), "")
	require.NoError(t, err)
	conv, ok := c.ConversationScope().Current(ctx)
	require.True(t, ok)
	require.Equal(t, time.Minute, conv.Timeout())
	require.NoError(t, c.ConversationScope().Deactivate(ctx))
}
