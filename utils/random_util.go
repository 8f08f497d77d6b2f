package utils

import (
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// GetUUID 生成调试会话的ID
func GetUUID() string {
	u1, err := uuid.NewUUID()
	if err != nil {
		logrus.Warnf("[GetUUID] time based uuid fail, err = %v", err)
		return uuid.NewString()
	}
	return u1.String()
}
