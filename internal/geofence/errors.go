package geofence

import (
	"geofence/internal/fixed"

	"github.com/pkg/errors"
)

var (
	// ErrInvalidGeometry：结构退化（环的不同顶点少于 3 个、缺少几何）
	ErrInvalidGeometry = errors.New("invalid geometry")
	// ErrRange：坐标超出定点可表示范围或经纬度范围
	ErrRange = fixed.ErrRange
	// ErrOverflow：判定过程中算术溢出；对已校验几何不应出现，出现即为内部缺陷
	ErrOverflow = fixed.ErrOverflow
	// ErrNotFound：未知或已移除的几何 ID
	ErrNotFound = errors.New("geometry not found")
)
