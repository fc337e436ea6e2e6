package domain

import "fmt"

// 画板工具类型。与客户端工具栏一一对应。
const (
	ToolBrush     = "brush"
	ToolEraser    = "eraser"
	ToolLine      = "line"
	ToolRectangle = "rectangle"
	ToolCircle    = "circle"
)

// EraserColor 橡皮擦固定使用背景色绘制，与请求方选中的颜色无关。
const EraserColor = "white"

// DrawOp 表示一次绘画操作。操作本身不做持久化，
// 只有 CanvasData（发送方应用该操作后的完整画布快照）会被折叠进房间状态。
// Undo 也是一次 DrawOp：IsUndo 为 true 时 Points/Tool 可以为空，
// CanvasData 携带发送方撤销后的画布。
type DrawOp struct {
	Tool       string
	Points     [][]float64 // 恰好两个坐标对：笔刷为上一采样点和当前点，图形为起止锚点
	Color      string
	BrushSize  int
	CanvasData string
	IsUndo     bool
}

// Validate 校验绘画操作的结构。
func (op DrawOp) Validate() error {
	if op.IsUndo {
		// 撤销只依赖快照本身
		return nil
	}
	switch op.Tool {
	case ToolBrush, ToolEraser, ToolLine, ToolRectangle, ToolCircle:
	default:
		return fmt.Errorf("unknown tool %q", op.Tool)
	}
	if len(op.Points) != 2 {
		return fmt.Errorf("draw op requires exactly 2 points, got %d", len(op.Points))
	}
	for i, pt := range op.Points {
		if len(pt) != 2 {
			return fmt.Errorf("point %d must be an [x, y] pair", i)
		}
	}
	return nil
}
