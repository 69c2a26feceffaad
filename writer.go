package geoinfer

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/wgdzlh/geoinfer/log"

	gdal "github.com/airbusgeo/godal"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// 输出镶嵌区域写入接口；由MosaicWriter实现，测试时可用内存实现替换
type regionWriter interface {
	WriteRegion(col, row, width, height int, data []byte) error
}

// 镶嵌输出：先写入同目录下的临时tif，成功收尾后改名为目标文件；
// 中途取消或失败只清理临时文件，不留下半成品结果
type MosaicWriter struct {
	ds     *Dataset
	band   Band
	tmp    string
	path   string
	width  int
	height int
	done   bool
	logTag string
}

func NewMosaicWriter(path string, width, height int, transform [6]float64, ref *gdal.SpatialRef) (mw *MosaicWriter, err error) {
	registerDrivers.Do(gdal.RegisterAll)
	tmp := filepath.Join(filepath.Dir(path), fmt.Sprintf(TMP_MASK_TIF, uuid.NewString()))
	ds, err := gdal.Create(gdal.GTiff, tmp, 1, gdal.Byte, width, height,
		gdal.CreationOption("COMPRESS=LZW", "BIGTIFF=IF_SAFER"))
	if err != nil {
		log.Error("MosaicWriter:create tif failed", zap.String("tmp", tmp), zap.Error(err))
		err = ErrTifWriteFailed
		return
	}
	mw = &MosaicWriter{
		ds:     ds,
		band:   ds.Bands()[0],
		tmp:    tmp,
		path:   path,
		width:  width,
		height: height,
		logTag: "MosaicWriter:",
	}
	if err = ds.SetGeoTransform(transform); err != nil {
		log.Error(mw.logTag+"set geo transform failed", zap.Error(err))
		mw.Abort()
		mw, err = nil, ErrTifWriteFailed
		return
	}
	if ref != nil {
		if err = ds.SetSpatialRef(ref); err != nil {
			log.Error(mw.logTag+"set spatial ref failed", zap.Error(err))
			mw.Abort()
			mw, err = nil, ErrTifWriteFailed
			return
		}
	}
	if err = mw.band.SetNoData(MosaicNoData); err == nil {
		err = mw.band.Fill(MosaicNoData, 0)
	}
	if err != nil {
		log.Error(mw.logTag+"init nodata failed", zap.Error(err))
		mw.Abort()
		mw, err = nil, ErrTifWriteFailed
	}
	return
}

// 分块写入，调用方保证各块互不重叠
func (mw *MosaicWriter) WriteRegion(col, row, width, height int, data []byte) (err error) {
	if col < 0 || row < 0 || col+width > mw.width || row+height > mw.height {
		return ErrWindowOutOfRange
	}
	if width == 0 || height == 0 {
		return
	}
	if err = mw.band.IO(gdal.IOWrite, col, row, data, width, height); err != nil {
		log.Error(mw.logTag+"write region failed", zap.Int("col", col), zap.Int("row", row), zap.Error(err))
		err = ErrTifWriteFailed
	}
	return
}

// 标注不完整结果：记录被跳过窗口核心区坐标，供下游识别
func (mw *MosaicWriter) MarkIncomplete(skipped string) {
	if err := mw.ds.SetMetadata("SKIPPED_WINDOWS", skipped); err != nil {
		log.Warn(mw.logTag+"set metadata failed", zap.Error(err))
	}
}

func (mw *MosaicWriter) Finalize() (err error) {
	if err = mw.ds.Close(); err != nil {
		log.Error(mw.logTag+"close tif failed", zap.Error(err))
		os.Remove(mw.tmp)
		err = ErrTifWriteFailed
		return
	}
	mw.done = true
	if err = os.Rename(mw.tmp, mw.path); err != nil {
		log.Error(mw.logTag+"rename tif failed", zap.String("out", mw.path), zap.Error(err))
		os.Remove(mw.tmp)
		err = ErrTifWriteFailed
		return
	}
	log.Info(mw.logTag+"mask saved", zap.String("out", mw.path))
	return
}

func (mw *MosaicWriter) Abort() {
	if mw.done {
		return
	}
	mw.ds.Close()
	os.Remove(mw.tmp)
	mw.done = true
}
