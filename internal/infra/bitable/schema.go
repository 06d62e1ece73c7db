package bitable

import "github.com/iudd/soradeno/internal/domain/model"

// The bitable schema is owned by the external store: localized field names
// and status strings are data, consumed here and nowhere else.
const (
	fieldPrompt        = "提示词"
	fieldCharacter     = "角色"
	fieldModel         = "模型"
	fieldGenerationTyp = "生成类型"
	fieldStatus        = "生成状态"
	fieldIsGenerated   = "是否已生成"
	fieldVideoURL      = "视频URL"
	fieldNoWatermark   = "无水印视频URL"
	fieldMirrorURL     = "云盘URL"
	fieldImageURL      = "图片URL"
	fieldRefImage      = "Sora图片"
	fieldError         = "错误信息"
	fieldCreatedTime   = "生成时间"
)

const (
	statusPending    = "待生成"
	statusInProgress = "生成中"
	statusSuccess    = "成功"
	statusFailed     = "失败"

	generationTypeImage = "图片生成"
)

var statusFromStore = map[string]model.TaskStatus{
	statusPending:    model.TaskStatusPending,
	statusInProgress: model.TaskStatusInProgress,
	statusSuccess:    model.TaskStatusSuccess,
	statusFailed:     model.TaskStatusFailed,
}
