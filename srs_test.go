package geoinfer

import (
	"strings"
	"testing"

	"github.com/lukeroth/gdal"
)

func TestSpanToWkt(t *testing.T) {
	wkt := SpanToWkt([4]float64{113.5, 115.0, 29.9, 31.3})
	if !strings.HasPrefix(wkt, "POLYGON((113.5") {
		t.Fatal(wkt)
	}
	if !strings.HasSuffix(wkt, "))") {
		t.Fatal(wkt)
	}
}

func TestSridOfWkt(t *testing.T) {
	srs := newSrsToolbox()
	ref := gdal.CreateSpatialReference("")
	if err := ref.FromEPSG(4326); err != nil {
		t.Fatal(err)
	}
	defer ref.Destroy()
	projWkt, err := ref.ToWKT()
	if err != nil {
		t.Fatal(err)
	}
	srid, err := srs.SridOfWkt(projWkt)
	if err != nil {
		t.Fatal(err)
	}
	if srid != 4326 {
		t.Fatalf("srid %d != 4326", srid)
	}
	if _, err = srs.SridOfWkt(""); err != ErrVoidSrid {
		t.Fatal("empty wkt accepted")
	}
}

func TestSpanToUniversalWkt(t *testing.T) {
	srs := newSrsToolbox()
	span := [4]float64{113.5, 115.0, 29.9, 31.3}
	same, err := srs.SpanToUniversalWkt(span, UNIVERSAL_SRID)
	if err != nil || same != SpanToWkt(span) {
		t.Fatal(same, err)
	}
	// web墨卡托范围转回经纬度
	wkt, err := srs.SpanToUniversalWkt([4]float64{12634972, 12801975, 3489867, 3669434}, 3857)
	if err != nil {
		t.Fatal(err)
	}
	t.Log(wkt)
	if !strings.HasPrefix(wkt, "POLYGON((113.") {
		t.Fatal(wkt)
	}
}
