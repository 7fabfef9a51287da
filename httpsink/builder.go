// SPDX-License-Identifier: GPL-3.0-or-later

// Package httpsink implements the HTTP request builder (a representative
// sink pathway): method/URL/header resolution with the documented
// precedence and multiplicity rules, chunked vs. buffered bodies, and a
// round-trip logging [http.RoundTripper] wrapper adapted from the
// teacher's HTTPConn.
package httpsink

import (
	"bytes"
	"context"
	"io"
	"net/http"

	"github.com/bassosimone/conduit/codec"
)

// Config is the static per-connector configuration consulted when an
// event's metadata does not supply a value.
type Config struct {
	Method  string
	URL     string
	Headers http.Header

	// Auth, when non-nil, returns an Authorization header value to
	// insert; ok is false when no auth is configured.
	Auth func() (value string, ok bool)

	// CodecName is the connector's configured codec.
	CodecName string
}

// RequestMeta is the subset of per-event metadata an HTTP sink reads:
// request.method, request.url, request.headers.
type RequestMeta struct {
	Method  string
	URL     string
	Headers http.Header
}

// Builder assembles one outbound [*http.Request] from per-event metadata
// and static [Config]. Construct with [NewBuilder].
type Builder struct {
	codecs *codec.Registry

	method string
	url    string
	header http.Header

	chunked bool
	chunkCh chan []byte
	buf     bytes.Buffer

	// chosenCodec is resolved once at construction (the override, else
	// the configured codec) so every Append call uses the same codec.
	chosenCodec string
}

// NewBuilder resolves method, URL, headers, and the chunked/buffered body
// mode from cfg and meta, per spec:
//
//   - Method: meta.Method, else cfg.Method.
//   - URL: meta.URL, else cfg.URL.
//   - Headers: cfg.Headers inserted first, then meta.Headers appended
//     (both retained; never overridden).
//   - Content-Type: explicit header > codec MIME for override > codec MIME
//     for cfg.CodecName > application/octet-stream.
//   - Authorization: inserted when cfg.Auth yields a value.
//   - Chunked: a literal "Transfer-Encoding: chunked" header switches to
//     a streaming body and strips any Content-Length.
func NewBuilder(cfg *Config, meta RequestMeta, codecs *codec.Registry, codecOverride string) *Builder {
	b := &Builder{codecs: codecs}

	b.method = cfg.Method
	if meta.Method != "" {
		b.method = meta.Method
	}

	b.url = cfg.URL
	if meta.URL != "" {
		b.url = meta.URL
	}

	b.header = make(http.Header)
	for k, vs := range cfg.Headers {
		for _, v := range vs {
			b.header.Add(k, v)
		}
	}
	for k, vs := range meta.Headers {
		for _, v := range vs {
			b.header.Add(k, v)
		}
	}

	if b.header.Get("Content-Type") == "" {
		b.header.Set("Content-Type", contentTypeFor(codecs, codecOverride, cfg.CodecName))
	}

	b.chosenCodec = codecOverride
	if b.chosenCodec == "" {
		b.chosenCodec = cfg.CodecName
	}

	if cfg.Auth != nil {
		if v, ok := cfg.Auth(); ok {
			b.header.Set("Authorization", v)
		}
	}

	if b.header.Get("Transfer-Encoding") == "chunked" {
		b.chunked = true
		b.chunkCh = make(chan []byte, 16)
		b.header.Del("Content-Length")
	}

	return b
}

// contentTypeFor implements the MIME precedence rule below the explicit
// header: override codec's MIME, then configured codec's MIME, then the
// octet-stream fallback.
func contentTypeFor(codecs *codec.Registry, override, configured string) string {
	if override != "" {
		if m := codecs.MimeForName(override); m != "" {
			return m
		}
	}
	if configured != "" {
		if m := codecs.MimeForName(configured); m != "" {
			return m
		}
	}
	return codec.DefaultOctetStreamMime
}

// Append serializes v with the chosen codec and, in chunked mode, forwards
// the bytes immediately on the chunk channel; otherwise it accumulates
// them into the buffered body.
func (b *Builder) Append(v any) error {
	c, err := b.codecs.Lookup(b.chosenCodec)
	if err != nil {
		return err
	}
	data, err := c.Encode(v)
	if err != nil {
		return err
	}
	if b.chunked {
		b.chunkCh <- data
		return nil
	}
	b.buf.Write(data)
	return nil
}

// Finalize attaches the body to an [*http.Request]: in buffered mode it
// sets a fixed-length body, in chunked mode it closes the chunk channel to
// signal EOF. It does not consult the codec: [codec.Codec] has no
// end-of-stream step, so no trailing codec bytes are flushed.
func (b *Builder) Finalize(ctx context.Context) (*http.Request, error) {
	if b.chunked {
		close(b.chunkCh)
		req, err := http.NewRequestWithContext(ctx, b.method, b.url, &chunkReader{ch: b.chunkCh})
		if err != nil {
			return nil, err
		}
		req.Header = b.header
		req.TransferEncoding = []string{"chunked"}
		return req, nil
	}

	req, err := http.NewRequestWithContext(ctx, b.method, b.url, bytes.NewReader(b.buf.Bytes()))
	if err != nil {
		return nil, err
	}
	req.Header = b.header
	req.ContentLength = int64(b.buf.Len())
	return req, nil
}

// chunkReader adapts a channel of already-produced chunks to [io.Reader].
type chunkReader struct {
	ch  chan []byte
	cur []byte
}

func (r *chunkReader) Read(p []byte) (int, error) {
	for len(r.cur) == 0 {
		chunk, ok := <-r.ch
		if !ok {
			return 0, io.EOF
		}
		r.cur = chunk
	}
	n := copy(p, r.cur)
	r.cur = r.cur[n:]
	return n, nil
}

var _ io.Reader = (*chunkReader)(nil)
