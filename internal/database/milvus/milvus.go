package milvus

import (
	"context"
	"fmt"
	"log"
	"sync"

	"ClimateIntel/internal/config"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
)

var (
	instance *MilvusClient
	once     sync.Once
	initErr  error
)

// MilvusClient 包含了 Milvus 客户端实例和相关配置。
type MilvusClient struct {
	Client client.Client        // Milvus 客户端实例。
	Config *config.MilvusConfig // Milvus 配置。
}

// GetClient 使用单例模式创建并返回一个 Milvus 客户端实例。
func GetClient(ctx context.Context, cfg *config.MilvusConfig) (*MilvusClient, error) {
	once.Do(func() {
		// 使用配置中的地址创建 Milvus 客户端。
		c, err := client.NewClient(ctx, client.Config{Address: cfg.Address})
		if err != nil {
			initErr = fmt.Errorf("无法连接到 Milvus: %w", err)
			return
		}
		log.Println("✅ 成功连接到 Milvus!")
		instance = &MilvusClient{Client: c, Config: cfg}
	})
	return instance, initErr
}

// EnsureCollection 确保配置中的集合存在并已加载。
// 集合不存在时按 Schema 配置创建，并为向量字段建立 IVF_FLAT 索引。
func (c *MilvusClient) EnsureCollection(ctx context.Context) error {
	schema := c.Config.Schema
	exists, err := c.Client.HasCollection(ctx, schema.CollectionName)
	if err != nil {
		return fmt.Errorf("无法检查集合 '%s' 是否存在: %w", schema.CollectionName, err)
	}

	if !exists {
		fields := make([]*entity.Field, 0, len(schema.Fields))
		for _, f := range schema.Fields {
			field := entity.NewField().WithName(f.Name)
			switch f.DataType {
			case "VarChar":
				field = field.WithDataType(entity.FieldTypeVarChar).WithMaxLength(int64(f.MaxLength))
			case "FloatVector":
				field = field.WithDataType(entity.FieldTypeFloatVector).WithDim(int64(f.Dim))
			default:
				return fmt.Errorf("不支持的字段类型: %s", f.DataType)
			}
			if f.IsPrimaryKey {
				field = field.WithIsPrimaryKey(true)
			}
			fields = append(fields, field)
		}

		collSchema := &entity.Schema{
			CollectionName: schema.CollectionName,
			Description:    schema.Description,
			Fields:         fields,
		}
		if err := c.Client.CreateCollection(ctx, collSchema, 1); err != nil {
			return fmt.Errorf("创建集合 '%s' 失败: %w", schema.CollectionName, err)
		}

		// 为向量字段建立索引。
		idx, err := entity.NewIndexIvfFlat(entity.L2, 128)
		if err != nil {
			return fmt.Errorf("构建索引参数失败: %w", err)
		}
		if err := c.Client.CreateIndex(ctx, schema.CollectionName, schema.VectorField, idx, false); err != nil {
			return fmt.Errorf("创建索引失败: %w", err)
		}
		log.Printf("✅ 已创建集合 '%s'。", schema.CollectionName)
	}

	if err := c.Client.LoadCollection(ctx, schema.CollectionName, false); err != nil {
		return fmt.Errorf("加载集合 '%s' 失败: %w", schema.CollectionName, err)
	}
	return nil
}

// DropCollection 删除配置中的集合（用于管理性的全量重建）。
// 集合不存在时返回 nil，保证重建操作幂等。
func (c *MilvusClient) DropCollection(ctx context.Context) error {
	schema := c.Config.Schema
	exists, err := c.Client.HasCollection(ctx, schema.CollectionName)
	if err != nil {
		return fmt.Errorf("无法检查集合 '%s' 是否存在: %w", schema.CollectionName, err)
	}
	if !exists {
		return nil
	}
	if err := c.Client.DropCollection(ctx, schema.CollectionName); err != nil {
		return fmt.Errorf("删除集合 '%s' 失败: %w", schema.CollectionName, err)
	}
	return nil
}

// Close 安全地关闭与 Milvus 的连接。
func (c *MilvusClient) Close() {
	if c.Client != nil {
		c.Client.Close()
		log.Println("ℹ️ 已安全关闭 Milvus 连接。")
	}
}
