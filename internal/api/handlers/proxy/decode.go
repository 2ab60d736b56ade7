package proxy

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	log "github.com/sirupsen/logrus"
)

// maxDecodedBody caps how much a compressed upstream response may inflate to.
const maxDecodedBody = 32 << 20

// acceptEncoding is advertised upstream; every listed coding can be decoded here.
const acceptEncoding = "gzip, br, zstd, deflate"

var zstdDecoder, _ = zstd.NewReader(nil, zstd.WithDecoderConcurrency(0))

// readCloser wraps a reader and forwards Close to a separate closer.
type readCloser struct {
	r io.Reader
	c io.Closer
}

func (rc *readCloser) Read(p []byte) (int, error) { return rc.r.Read(p) }
func (rc *readCloser) Close() error               { return rc.c.Close() }

// decodeBody reverses a single Content-Encoding.
func decodeBody(encoding string, body []byte) ([]byte, error) {
	var r io.Reader
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "", "identity":
		return body, nil
	case "gzip", "x-gzip":
		gz, err := gzip.NewReader(bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		defer func() { _ = gz.Close() }()
		r = gz
	case "br":
		r = brotli.NewReader(bytes.NewReader(body))
	case "deflate":
		fr := flate.NewReader(bytes.NewReader(body))
		defer func() { _ = fr.Close() }()
		r = fr
	case "zstd":
		return zstdDecoder.DecodeAll(body, nil)
	default:
		return nil, fmt.Errorf("unsupported content encoding %q", encoding)
	}
	out, err := io.ReadAll(io.LimitReader(r, maxDecodedBody+1))
	if err != nil {
		return nil, err
	}
	if len(out) > maxDecodedBody {
		return nil, fmt.Errorf("decoded body exceeds %d bytes", maxDecodedBody)
	}
	return out, nil
}

// decodeResponse replaces a compressed upstream body with its decoded form. A
// body that fails to decode is passed through with its encoding header intact.
// Gzip bodies sent without a Content-Encoding header are detected by their magic bytes.
func decodeResponse(resp *http.Response) error {
	if strings.Contains(resp.Header.Get("Content-Type"), "text/event-stream") {
		return nil
	}
	encoding := resp.Header.Get("Content-Encoding")
	if encoding == "" {
		br := bufio.NewReader(resp.Body)
		magic, _ := br.Peek(2)
		resp.Body = &readCloser{r: br, c: resp.Body}
		if len(magic) < 2 || magic[0] != 0x1f || magic[1] != 0x8b {
			return nil
		}
		encoding = "gzip"
	}

	raw, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if err != nil {
		return fmt.Errorf("read upstream body: %w", err)
	}
	decoded, err := decodeBody(encoding, raw)
	if err != nil {
		log.Warnf("proxy: could not decode %s response: %v", encoding, err)
		resp.Body = io.NopCloser(bytes.NewReader(raw))
		return nil
	}

	resp.Body = io.NopCloser(bytes.NewReader(decoded))
	resp.ContentLength = int64(len(decoded))
	resp.Header.Del("Content-Encoding")
	resp.Header.Set("Content-Length", strconv.Itoa(len(decoded)))
	log.Debugf("proxy: decoded %s response (%d -> %d bytes)", encoding, len(raw), len(decoded))
	return nil
}
