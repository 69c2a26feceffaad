package geoinfer

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/wgdzlh/geoinfer/log"

	"github.com/lukeroth/gdal"
	"go.uber.org/zap"
)

// 坐标系工具箱：srid坐标系可复用，故缓存且无需回收
type srsToolbox struct {
	refMap map[int]gdal.SpatialReference
	rLock  sync.Mutex
	logTag string
}

func newSrsToolbox() *srsToolbox {
	return &srsToolbox{
		refMap: map[int]gdal.SpatialReference{},
		logTag: "srsToolbox:",
	}
}

func (s *srsToolbox) getSridRef(srid int) (ref gdal.SpatialReference, err error) {
	s.rLock.Lock()
	defer s.rLock.Unlock()
	ref, ok := s.refMap[srid]
	if ok {
		return
	}
	ref = gdal.CreateSpatialReference("")
	if err = ref.FromEPSG(srid); err != nil {
		log.Error(s.logTag+"set ref srid failed", zap.Int("srid", srid), zap.Error(err))
		ref.Destroy()
		return
	}
	// 数据轴次序固定为(经度,纬度)传统GIS坐标序，避免转换时次序倒置
	ref.SetAxisMappingStrategy(gdal.OAMS_TraditionalGisOrder)
	s.refMap[srid] = ref
	return
}

func (s *srsToolbox) getSrid(sp gdal.SpatialReference) (srid int, err error) {
	rawId, ok := sp.AttrValue("AUTHORITY", 1)
	if !ok {
		wkt, _ := sp.ToWKT()
		if strings.Contains(wkt, "CGCS_2000") {
			rawId = "4490"
		} else {
			err = ErrVoidSrid
			return
		}
	}
	srid, err = strconv.Atoi(rawId)
	return
}

// 从投影WKT提取srid
func (s *srsToolbox) SridOfWkt(projWkt string) (srid int, err error) {
	if projWkt == "" {
		err = ErrVoidSrid
		return
	}
	sp := gdal.CreateSpatialReference(projWkt)
	defer sp.Destroy()
	return s.getSrid(sp)
}

// 世界坐标范围转为EPSG:4326下的范围WKT，用于运行报告
func (s *srsToolbox) SpanToUniversalWkt(span [4]float64, srid int) (wkt string, err error) {
	wkt = SpanToWkt(span)
	if srid == UNIVERSAL_SRID || srid == 0 {
		return
	}
	ref, err := s.getSridRef(srid)
	if err != nil {
		return
	}
	tRef, err := s.getSridRef(UNIVERSAL_SRID)
	if err != nil {
		return
	}
	geo, err := gdal.CreateFromWKT(wkt, ref)
	if err != nil {
		log.Error(s.logTag+"parse span wkt failed", zap.Error(err))
		return
	}
	defer geo.Destroy()
	if err = geo.TransformTo(tRef); err != nil {
		log.Error(s.logTag+"span transform failed", zap.Int("srid", srid), zap.Error(err))
		return
	}
	envelop := geo.Envelope()
	wkt = SpanToWkt([4]float64{envelop.MinX(), envelop.MaxX(), envelop.MinY(), envelop.MaxY()})
	return
}

func PointsToWkt(lon1, lon2, lat1, lat2 float64) string {
	return fmt.Sprintf("POLYGON((%[1]f %[3]f, %[1]f %[4]f, %[2]f %[4]f, %[2]f %[3]f, %[1]f %[3]f))", lon1, lon2, lat1, lat2)
}

func SpanToWkt(span [4]float64) string {
	return PointsToWkt(span[0], span[1], span[2], span[3])
}
