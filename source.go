package hashlink

import (
	"context"
	"io"

	"tlog.app/go/errors"
	"tlog.app/go/tlog"
)

// ChunkSize is how much ReadAll reads between context checks.
const ChunkSize = 1 << 20

// DecodeReaderAt reads size bytes from r and decodes them.
// Cancelling ctx stops reading and is returned as the decode error.
func DecodeReaderAt(ctx context.Context, r io.ReaderAt, size int64, s Settings) (*Image, error) {
	b, err := ReadAt(ctx, r, size)
	if err != nil {
		return nil, err
	}

	return Decode(b, s)
}

// DecodeReader reads r to the end and decodes it.
func DecodeReader(ctx context.Context, r io.Reader, s Settings) (*Image, error) {
	b, err := ReadAll(ctx, r)
	if err != nil {
		return nil, err
	}

	return Decode(b, s)
}

// ReadAt reads size bytes from the start of r in chunks.
func ReadAt(ctx context.Context, r io.ReaderAt, size int64) (b []byte, err error) {
	if size < 0 || int64(int(size)) != size {
		return nil, errors.New("bad size: %d", size)
	}

	b = make([]byte, size)

	for off := 0; off < len(b); {
		if err = ctx.Err(); err != nil {
			return nil, errors.Wrap(err, "read at 0x%x", off)
		}

		end := off + ChunkSize
		if end > len(b) {
			end = len(b)
		}

		n, err := r.ReadAt(b[off:end], int64(off))
		off += n

		if err == io.EOF && off < len(b) {
			return nil, errors.Wrap(ErrUnexpectedEOF, "read at 0x%x", off)
		}
		if err != nil && err != io.EOF {
			return nil, errors.Wrap(err, "read at 0x%x", off)
		}
	}

	tlog.V("source").Printw("read", "size", size)

	return b, nil
}

// ReadAll reads r until io.EOF in chunks.
func ReadAll(ctx context.Context, r io.Reader) (b []byte, err error) {
	for {
		if err = ctx.Err(); err != nil {
			return nil, errors.Wrap(err, "read at 0x%x", len(b))
		}

		if cap(b)-len(b) < ChunkSize {
			b = append(b, make([]byte, ChunkSize)...)[:len(b)]
		}

		n, err := r.Read(b[len(b) : len(b)+ChunkSize])
		b = b[:len(b)+n]

		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "read at 0x%x", len(b))
		}
	}

	tlog.V("source").Printw("read", "size", len(b))

	return b, nil
}
