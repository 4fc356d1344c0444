package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/tradelinehq/tradeline/pkg/enums"
)

// Notification is a message request handed to the conversational layer:
// recipient, template name, and the data the template renders.
type Notification struct {
	ID        uuid.UUID                  `gorm:"column:id;type:uuid;primaryKey"`
	Recipient uuid.UUID                  `gorm:"column:recipient;type:uuid;not null;index"`
	Template  enums.NotificationTemplate `gorm:"column:template;type:notification_template;not null"`
	Data      json.RawMessage            `gorm:"column:data;type:jsonb"`
	SentAt    *time.Time                 `gorm:"column:sent_at"`
	CreatedAt time.Time                  `gorm:"column:created_at;autoCreateTime"`
}
