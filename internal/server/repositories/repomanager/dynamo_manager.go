package repomanager

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/dmitrijs2005/redactvault/internal/server/repositories/vault"
)

// DynamoClient is vault.DynamoAPI plus the table inspection used at startup.
type DynamoClient interface {
	vault.DynamoAPI
	DescribeTable(ctx context.Context, in *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
}

// DynamoRepositoryManager serves the vault from a DynamoDB table. The table is
// provisioned outside the service; RunMigrations only checks it is usable.
type DynamoRepositoryManager struct {
	client DynamoClient
	table  string
}

func NewDynamoRepositoryManager(client DynamoClient, table string) *DynamoRepositoryManager {
	return &DynamoRepositoryManager{client: client, table: table}
}

func (m *DynamoRepositoryManager) RunMigrations(ctx context.Context) error {
	out, err := m.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(m.table)})
	if err != nil {
		return fmt.Errorf("failed to describe table %s: %w", m.table, err)
	}
	t := out.Table
	if t == nil || t.TableStatus != types.TableStatusActive {
		return fmt.Errorf("table %s is not active", m.table)
	}
	for _, idx := range t.GlobalSecondaryIndexes {
		if aws.ToString(idx.IndexName) == vault.OwnerIndexName {
			return nil
		}
	}
	return fmt.Errorf("table %s has no %s index", m.table, vault.OwnerIndexName)
}

func (m *DynamoRepositoryManager) Vault() vault.Repository {
	return vault.NewDynamoRepository(m.client, m.table)
}

func (m *DynamoRepositoryManager) Close() error { return nil }
