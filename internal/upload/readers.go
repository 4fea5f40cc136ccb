package upload

import "io"

// capReader fails once more than remaining bytes have been read.
type capReader struct {
	r         io.Reader
	remaining int64
	exceeded  bool
}

func (c *capReader) Read(p []byte) (int, error) {
	if c.exceeded {
		return 0, ErrTooLarge
	}
	if int64(len(p)) > c.remaining+1 {
		p = p[:c.remaining+1]
	}
	n, err := c.r.Read(p)
	if int64(n) > c.remaining {
		c.exceeded = true
		return 0, ErrTooLarge
	}
	c.remaining -= int64(n)
	return n, err
}

type progressReader struct {
	r      io.Reader
	total  int64
	read   int64
	report func(float64)
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.read += int64(n)
		fraction := float64(p.read) / float64(p.total)
		if fraction > 1 {
			fraction = 1
		}
		p.report(fraction)
	}
	return n, err
}
