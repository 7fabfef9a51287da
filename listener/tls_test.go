//
// SPDX-License-Identifier: GPL-3.0-or-later
//

package listener

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bassosimone/conduit"
)

func selfSignedTLSConfig(t *testing.T) *tls.Config {
	t.Helper()

	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "localhost"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	}

	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &priv.PublicKey, priv)
	require.NoError(t, err)

	cert := tls.Certificate{Certificate: [][]byte{der}, PrivateKey: priv}
	return &tls.Config{Certificates: []tls.Certificate{cert}}
}

func TestTLSServerHandshakeSucceeds(t *testing.T) {
	serverConfig := selfSignedTLSConfig(t)
	cfg := conduit.NewConfig()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	done := make(chan error, 1)
	go func() {
		raw, err := ln.Accept()
		if err != nil {
			done <- err
			return
		}
		hs := NewTLSServerHandshake(cfg, serverConfig, conduit.DefaultSLogger())
		_, err = hs.Handshake(context.Background(), raw)
		done <- err
	}()

	clientConfig := &tls.Config{InsecureSkipVerify: true}
	conn, err := tls.Dial("tcp", ln.Addr().String(), clientConfig)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.Handshake())
	require.NoError(t, <-done)
}
