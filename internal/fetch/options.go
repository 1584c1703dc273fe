package fetch

import (
	"time"

	"github.com/go-logr/logr"
	"github.com/go-resty/resty/v2"
	"github.com/spf13/afero"
)

type WithLog struct{ Log logr.Logger }

func (w WithLog) ConfigureFetcher(c *Config) {
	c.Log = w.Log
}

type WithRestyClient struct{ Client *resty.Client }

func (w WithRestyClient) ConfigureFetcher(c *Config) {
	c.Client = w.Client
}

type WithFs struct{ Fs afero.Fs }

func (w WithFs) ConfigureFetcher(c *Config) {
	c.Fs = w.Fs
}

type WithResponseHeaderTimeout time.Duration

func (w WithResponseHeaderTimeout) ConfigureFetcher(c *Config) {
	c.ResponseHeaderTimeout = time.Duration(w)
}
