// SPDX-License-Identifier: GPL-3.0-or-later

package cb

import (
	"context"
	"encoding/json"
	"time"

	"github.com/bassosimone/conduit"
	"github.com/bassosimone/conduit/codec"
	"github.com/bassosimone/conduit/registry"
	sinkpkg "github.com/bassosimone/conduit/sink"
	sourcepkg "github.com/bassosimone/conduit/source"
)

// ConnectorType is the static type tag used to register the CB connector
// in a [registry.Registry].
const ConnectorType = "cb"

// rawConfig is the wire shape of a CB connector configuration: { path:
// string, timeout: u64 ns (default 10e9), expect_batched: bool (default
// false) }. path is required.
type rawConfig struct {
	Path          string `json:"path"`
	TimeoutNS     int64  `json:"timeout"`
	ExpectBatched bool   `json:"expect_batched"`
}

// Connector implements [registry.Connector] for the CB test/verification
// connector. It is Structured-codec: the source emits raw lines and the
// sink reads commands out of already-decoded metadata, so neither half
// touches a byte-oriented codec.
type Connector struct {
	cfg rawConfig
}

// NewBuilder returns a [registry.Builder] that decodes and validates a CB
// connector configuration and produces a [*Connector].
func NewBuilder() registry.Builder {
	return registry.BuilderFunc{
		TypeName: ConnectorType,
		BuildFn:  build,
	}
}

func build(cfg *conduit.Config, raw json.RawMessage) (registry.Connector, error) {
	var rc rawConfig
	if err := registry.DecodeStrict(ConnectorType, raw, &rc); err != nil {
		return nil, err
	}
	if err := registry.RequireString(ConnectorType, "path", rc.Path); err != nil {
		return nil, err
	}
	if rc.TimeoutNS == 0 {
		rc.TimeoutNS = DefaultTimeout.Nanoseconds()
	}
	return &Connector{cfg: rc}, nil
}

// Type implements [registry.Connector].
func (c *Connector) Type() string { return ConnectorType }

// CodecReq implements [registry.Connector].
func (c *Connector) CodecReq() codec.CodecReq {
	return codec.CodecReq{Requirement: codec.Structured}
}

// CreateSource implements [registry.Connector], returning a [*Source]
// configured from the connector's configuration.
func (c *Connector) CreateSource(ctx context.Context) (sourcepkg.Source, bool, error) {
	src := NewSource(SourceConfig{
		Path:          c.cfg.Path,
		Timeout:       time.Duration(c.cfg.TimeoutNS),
		ExpectBatched: c.cfg.ExpectBatched,
	}, nil)
	return src, true, nil
}

// CreateSink implements [registry.Connector], returning a [*Sink].
func (c *Connector) CreateSink(ctx context.Context) (sinkpkg.Sink, bool, error) {
	return NewSink(), true, nil
}
