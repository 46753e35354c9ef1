package common

import (
	"os"
	"sync"

	"github.com/bwmarrin/snowflake"
)

const (
	ENABLED  = "enabled"
	DISABLED = "disabled"
)

var (
	snowflakeNode *snowflake.Node
	snowflakeOnce sync.Once
)

// UUIDint64 returns a process-unique snowflake ID.
func UUIDint64() int64 {
	snowflakeOnce.Do(func() {
		node := int64(os.Getpid() % 1024)
		snowflakeNode, _ = snowflake.NewNode(node)
	})
	if snowflakeNode == nil {
		return 0
	}
	return snowflakeNode.Generate().Int64()
}

// IfEmptyStr returns defval when src is empty.
func IfEmptyStr(src string, defval string) string {
	if src == "" {
		return defval
	}
	return src
}
