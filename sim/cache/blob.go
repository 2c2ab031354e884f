package cache

import (
	"compress/gzip"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/fxamacker/cbor/v2"
	"github.com/zeebo/xxh3"
)

// On-disk layout of a <key>.data file:
//
//	gzip( checksum[8] big-endian xxh3 of payload | payload CBOR )
//
// CBOR keeps the blob readable from any language with a CBOR decoder.
const checksumSize = 8

var errChecksum = errors.New("checksum mismatch")

func encodeBlob(w io.Writer, v any) error {
	payload, err := cbor.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	var hdr [checksumSize]byte
	binary.BigEndian.PutUint64(hdr[:], xxh3.Hash(payload))

	gw := gzip.NewWriter(w)
	if _, err := gw.Write(hdr[:]); err != nil {
		return err
	}
	if _, err := gw.Write(payload); err != nil {
		return err
	}
	return gw.Close()
}

func decodeBlob(r io.Reader, v any) error {
	gr, err := gzip.NewReader(r)
	if err != nil {
		return fmt.Errorf("decompress: %w", err)
	}
	defer gr.Close()
	data, err := io.ReadAll(gr)
	if err != nil {
		return fmt.Errorf("decompress: %w", err)
	}
	if len(data) < checksumSize {
		return fmt.Errorf("short blob (%d bytes)", len(data))
	}
	payload := data[checksumSize:]
	if binary.BigEndian.Uint64(data[:checksumSize]) != xxh3.Hash(payload) {
		return errChecksum
	}
	if err := cbor.Unmarshal(payload, v); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	return nil
}

// writeBlob persists v at path via a temp file and rename, so readers never
// observe a partial blob.
func writeBlob(path string, v any) error {
	tmp := path + tmpSuffix
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if err := encodeBlob(f, v); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

func readBlob(path string, v any) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return decodeBlob(f, v)
}
