package models

import (
	"time"
)

type Item struct {
	ID        string     `json:"id" gorm:"primaryKey;type:text"`
	Document  string     `json:"document" gorm:"type:text"`
	Succeeded int        `json:"succeeded" gorm:"not null;default:0"`
	Failed    int        `json:"failed" gorm:"not null;default:0;index"`
	Fetches   []FetchLog `json:"fetches" gorm:"foreignKey:ItemID;references:ID;constraint:OnDelete:CASCADE;"`
	CDate     time.Time  `json:"cdate" gorm:"->;<-:create;type:timestamp with time zone;not null;default:clock_timestamp()"`
	MDate     time.Time  `json:"mdate" gorm:"autoUpdateTime"`
}

type FetchLog struct {
	ID        int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	ItemID    string    `json:"itemID" gorm:"type:text;index:fetch_log_item_position,unique"`
	Position  int       `json:"position" gorm:"index:fetch_log_item_position,unique"`
	SourceURL string    `json:"sourceURL" gorm:"type:text;index"`
	Bucket    string    `json:"bucket" gorm:"type:text"`
	Key       string    `json:"key" gorm:"type:text"`
	Checksum  string    `json:"checksum" gorm:"type:text"`
	Status    string    `json:"status" gorm:"type:text;index"`
	Reason    string    `json:"reason" gorm:"type:text"`
	CDate     time.Time `json:"cdate" gorm:"->;<-:create;type:timestamp with time zone;not null;default:clock_timestamp()"`
}
