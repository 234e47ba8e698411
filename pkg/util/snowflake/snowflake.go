// Package snowflake 生成消息 ID
// 同一节点生成的 ID 严格递增，与 created_at 一起构成消息的全序
package snowflake

import (
	"sync"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"
)

// defaultMachineID 未调用 Init 时使用的节点号
const defaultMachineID = 1

var (
	node     *snowflake.Node
	nodeOnce sync.Once
)

// Init 设置本实例的节点号，只有第一次调用生效
// 多实例部署（kafka / redis 消息模式）时每个实例必须使用不同的 machineID，范围 0-1023
func Init(machineID int64) {
	nodeOnce.Do(func() {
		if machineID < 0 || machineID > 1023 {
			zap.L().Warn("snowflake machine id out of range, falling back",
				zap.Int64("machine_id", machineID), zap.Int64("fallback", defaultMachineID))
			machineID = defaultMachineID
		}
		var err error
		node, err = snowflake.NewNode(machineID)
		if err != nil {
			zap.L().Fatal("init snowflake node", zap.Error(err))
		}
	})
}

// GenerateID 生成一个新的消息 ID
func GenerateID() int64 {
	Init(defaultMachineID)
	return node.Generate().Int64()
}
