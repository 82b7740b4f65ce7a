package config

import (
	"io"

	"github.com/sirupsen/logrus"
)

// NewLogger builds the process-wide logger handed to every component.
func NewLogger(level string, out io.Writer) (*logrus.Logger, error) {
	ll, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	logger := logrus.New()
	logger.SetLevel(ll)
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, DisableColors: true})
	if out != nil {
		logger.SetOutput(out)
	}
	return logger, nil
}
