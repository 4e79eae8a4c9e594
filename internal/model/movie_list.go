package model

import (
	"strings"
	"time"
)

// MovieEntry 片单中的一条影片记录，同一片单内以 Title 作为身份
type MovieEntry struct {
	Title string `json:"title" validate:"required"`
	Note  string `json:"note"`
	URL   string `json:"url"`
}

// Equal 全字段相等
func (e MovieEntry) Equal(other MovieEntry) bool {
	return e.Title == other.Title && e.Note == other.Note && e.URL == other.URL
}

// MovieList 片单文档
type MovieList struct {
	ID        string       `json:"id" gorm:"primaryKey;size:26"`
	Namespace string       `json:"-" gorm:"size:64;index:idx_list_owner,priority:1"`
	OwnerID   string       `json:"-" gorm:"size:36;index:idx_list_owner,priority:2"`
	Name      string       `json:"name"`
	Movies    []MovieEntry `json:"movies" gorm:"serializer:json;type:text"`
	Version   int64        `json:"version"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

func (MovieList) TableName() string {
	return "movie_lists"
}

// Owner 片单所有者，由命名空间与用户 UID 共同确定
type Owner struct {
	Namespace string
	ID        string
}

// Path 文档路径 <namespace>/<ownerId>/movieLists/<listId>
func (o Owner) Path(listID string) string {
	return strings.Join([]string{o.Namespace, o.ID, "movieLists", listID}, "/")
}

// Valid 所有者是否已解析
func (o Owner) Valid() bool {
	return o.Namespace != "" && o.ID != ""
}
