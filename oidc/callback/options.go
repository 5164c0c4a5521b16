// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package callback

import (
	"github.com/hashicorp/go-hclog"
	"github.com/myopenpass/openpass-go/oidc"
)

// Option defines a common functional options type which can be used in a
// variadic parameter pattern.
type Option = oidc.Option

type options struct {
	withLogger hclog.Logger
}

func getDefaults() options {
	return options{
		withLogger: hclog.NewNullLogger(),
	}
}

func getOpts(opt ...Option) options {
	opts := getDefaults()
	oidc.ApplyOpts(&opts, opt...)
	return opts
}

// WithLogger provides an optional logger for: ChannelSession
func WithLogger(l hclog.Logger) Option {
	return func(o interface{}) {
		if l == nil {
			return
		}
		if o, ok := o.(*options); ok {
			o.withLogger = l
		}
	}
}
