package models

// Project 表示一个拥有若干数据分块的逻辑项目。
// ProjectID 是稳定的、不透明的外部标识。
type Project struct {
	ProjectID string `bson:"project_id" json:"project_id"`
}

// DataChunk 是上游切分流程产出的只读文本分块。
// Order 记录分块在项目内的稳定顺序，分页读取时按其排序。
type DataChunk struct {
	Text     string                 `bson:"chunk_text" json:"chunk_text"`
	Metadata map[string]interface{} `bson:"chunk_metadata" json:"chunk_metadata"`
	Order    int                    `bson:"chunk_order" json:"chunk_order"`
}
