// SPDX-License-Identifier: GPL-3.0-or-later

package loopchan

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultSLoggerDiscards(t *testing.T) {
	logger := DefaultSLogger()
	assert.Equal(t, discardSLogger{}, logger)

	// the slog logger is a valid replacement
	var _ SLogger = slog.Default()

	logger.Debug("writeDone", slog.String("channelID", "x"))
	logger.Info("closeDone", slog.Any("err", ErrClosedChannel))
}

func TestComponentsKeepTheirLogger(t *testing.T) {
	cfg := NewConfig()
	logger, _ := newCapturingLogger()

	type testcase struct {
		// name is the name of the test case.
		name string

		// logger returns the logger stored by the component.
		logger func(logger SLogger) SLogger
	}

	cases := []testcase{
		{
			name: "LocalChannel",
			logger: func(logger SLogger) SLogger {
				return NewLocalChannel(cfg, logger).Logger
			},
		},
		{
			name: "LocalServerChannel",
			logger: func(logger SLogger) SLogger {
				return NewLocalServerChannel(cfg, logger).Logger
			},
		},
		{
			name: "LoggingHandler",
			logger: func(logger SLogger) SLogger {
				return NewLoggingHandler(cfg, logger).Logger
			},
		},
		{
			name: "pipeline",
			logger: func(logger SLogger) SLogger {
				return NewLocalChannel(cfg, logger).Pipeline().logger
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, DefaultSLogger(), tc.logger(DefaultSLogger()))
			assert.Same(t, logger, tc.logger(logger))
		})
	}
}

func TestDefaultSLoggerLifecycle(t *testing.T) {
	// a whole connect and close cycle runs with logging disabled
	cfg := NewConfig()
	loop := newTestLoop(t, cfg)
	srv := NewLocalServerChannel(cfg, DefaultSLogger())
	require.NoError(t, waitFuture(t, srv.Register(loop)))
	require.NoError(t, waitFuture(t, srv.Bind(context.Background(), NewLocalAddress("quiet"))))

	client := NewLocalChannel(cfg, DefaultSLogger())
	require.NoError(t, waitFuture(t, client.Register(loop)))
	require.NoError(t, waitFuture(t, client.Connect(context.Background(), NewLocalAddress("quiet"), LocalAddress{})))
	require.NoError(t, waitFuture(t, client.WriteAndFlush(context.Background(), "msg")))
	require.NoError(t, waitFuture(t, client.Close(context.Background())))
	require.NoError(t, waitFuture(t, srv.Close(context.Background())))
}
