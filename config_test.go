package geoinfer

import "testing"

func TestParsePolicies(t *testing.T) {
	if p, err := ParseBlendPolicy("discard-margin"); err != nil || p != BlendDiscardMargin {
		t.Fatal(p, err)
	}
	if p, err := ParseBlendPolicy("weighted-average"); err != nil || p != BlendWeightedAverage {
		t.Fatal(p, err)
	}
	if _, err := ParseBlendPolicy("mean"); err != ErrBadBlendMode {
		t.Fatal("bad blend policy accepted")
	}
	if p, err := ParseErrorPolicy("skip-on-error"); err != nil || p != SkipOnError {
		t.Fatal(p, err)
	}
	if _, err := ParseErrorPolicy("retry"); err != ErrBadErrorMode {
		t.Fatal("bad error policy accepted")
	}
}

func TestConfigNormalize(t *testing.T) {
	var c Config
	c.normalize()
	if c.TileSize != DefaultTileSize || c.Overlap != DefaultOverlap || c.BatchSize != DefaultBatchSize {
		t.Fatalf("defaults not applied: %+v", c)
	}
	if err := c.validate(); err != nil {
		t.Fatal(err)
	}
	c = Config{TileSize: 64}
	c.normalize()
	if c.Overlap != 0 {
		t.Fatal("overlap should stay 0 when tile size is explicit")
	}
}
