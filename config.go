package pyramidtiff

// Config holds the immutable parameters of a single rip. It is built with
// functional options the same way the teacher's Tiler/Stripper are, and is
// read-only for the engine's lifetime once NewConfig returns.
type Config struct {
	OutputTileSize int  // O: output tile side, must be a positive multiple of 16
	Quality        int  // JPEG quality in [1,100]
	SharedQuantTables bool // emit a JPEGTables field and omit per-tile DQT
	SoftwareField  string // Software tag value; empty disables the tag
	MaxRetries     int    // HTTP fetch retry attempts
	RetryInterval  intMillis

	minOverviewSize int // smaller than this on the shorter side, stop
}

// intMillis documents that a field is a duration expressed in milliseconds,
// matching the spec's "fixed retry_interval (default 1000 ms)" wording.
type intMillis = int

// Option mutates a Config under construction. An Option returning a non-nil
// error aborts NewConfig with that error (always *Error{Kind: KindInvalidArgument}).
type Option func(*Config) error

// OutputTileSize sets O, the output tile side in pixels. Must be a positive
// multiple of 16 for JPEG 4:2:0 MCU alignment.
func OutputTileSize(n int) Option {
	return func(c *Config) error {
		if n <= 0 || n%16 != 0 {
			return newErr(KindInvalidArgument, "output tile size must be a positive multiple of 16", nil)
		}
		c.OutputTileSize = n
		return nil
	}
}

// Quality sets the JPEG quality in [1,100].
func Quality(q int) Option {
	return func(c *Config) error {
		if q < 1 || q > 100 {
			return newErr(KindInvalidArgument, "quality must be in [1,100]", nil)
		}
		c.Quality = q
		return nil
	}
}

// SharedQuantizationTables enables a single JPEGTables field shared by every
// tile's JPEG stream instead of per-tile quantization tables.
func SharedQuantizationTables(enabled bool) Option {
	return func(c *Config) error {
		c.SharedQuantTables = enabled
		return nil
	}
}

// SoftwareTag sets (or, with "", disables) the TIFF Software tag.
func SoftwareTag(s string) Option {
	return func(c *Config) error {
		c.SoftwareField = s
		return nil
	}
}

// MaxRetries sets the number of HTTP tile-fetch attempts before FetchFailed.
func MaxRetries(n int) Option {
	return func(c *Config) error {
		if n < 1 {
			return newErr(KindInvalidArgument, "max retries must be >=1", nil)
		}
		c.MaxRetries = n
		return nil
	}
}

// RetryIntervalMillis sets the fixed delay between fetch retries.
func RetryIntervalMillis(ms int) Option {
	return func(c *Config) error {
		if ms < 0 {
			return newErr(KindInvalidArgument, "retry interval must be >=0", nil)
		}
		c.RetryInterval = ms
		return nil
	}
}

// MinOverviewSize sets the threshold (shorter side, in pixels) below which
// the reduced-resolution generator stops producing new IFDs.
func MinOverviewSize(n int) Option {
	return func(c *Config) error {
		if n < 1 {
			return newErr(KindInvalidArgument, "minimum overview size must be >=1", nil)
		}
		c.minOverviewSize = n
		return nil
	}
}

// MinOverviewSize returns the configured overview stop threshold.
func (c Config) MinOverviewSize() int { return c.minOverviewSize }

// NewConfig builds a Config with the package defaults, then applies opts in
// order. Defaults: 256px output tiles, quality 75, no shared quantization
// tables, no Software tag, 3 retries at 1000ms, overviews down to 32px.
func NewConfig(opts ...Option) (Config, error) {
	c := Config{
		OutputTileSize:  256,
		Quality:         75,
		MaxRetries:      3,
		RetryInterval:   1000,
		minOverviewSize: 32,
	}
	for _, o := range opts {
		if err := o(&c); err != nil {
			return c, err
		}
	}
	return c, nil
}
