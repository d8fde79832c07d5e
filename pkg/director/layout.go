package director

// Attr は吹き出し配置の属性（キーと値）です。出力順を保つためスライスで扱います。
type Attr struct {
	Key   string
	Value string
}

// LayoutManager は吹き出しの座標や配置ルールを管理します。
type LayoutManager struct {
	DefaultMargin string
}

func NewLayoutManager() *LayoutManager {
	return &LayoutManager{
		DefaultMargin: "10%",
	}
}

// GetPositionAttrs はパネルのインデックスに基づき、
// 上下左右で交互に入れ替わる対角配置の属性を返します。
func (l *LayoutManager) GetPositionAttrs(index int) []Attr {
	if index%2 == 0 {
		return []Attr{
			{Key: "tail", Value: "top"},
			{Key: "bottom", Value: l.DefaultMargin},
			{Key: "left", Value: l.DefaultMargin},
		}
	}
	return []Attr{
		{Key: "tail", Value: "bottom"},
		{Key: "top", Value: l.DefaultMargin},
		{Key: "right", Value: l.DefaultMargin},
	}
}
