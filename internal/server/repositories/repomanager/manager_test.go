package repomanager

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/dmitrijs2005/redactvault/internal/server/repositories/vault"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDescriber struct {
	DynamoClient
	out *dynamodb.DescribeTableOutput
	err error
}

func (f *fakeDescriber) DescribeTable(ctx context.Context, in *dynamodb.DescribeTableInput, _ ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
	return f.out, f.err
}

func TestDynamoManager_RunMigrations(t *testing.T) {
	active := &types.TableDescription{
		TableStatus: types.TableStatusActive,
		GlobalSecondaryIndexes: []types.GlobalSecondaryIndexDescription{
			{IndexName: aws.String(vault.OwnerIndexName)},
		},
	}
	noIndex := &types.TableDescription{TableStatus: types.TableStatusActive}
	creating := &types.TableDescription{TableStatus: types.TableStatusCreating}

	tests := []struct {
		name    string
		f       *fakeDescriber
		wantErr bool
	}{
		{"ready", &fakeDescriber{out: &dynamodb.DescribeTableOutput{Table: active}}, false},
		{"missing index", &fakeDescriber{out: &dynamodb.DescribeTableOutput{Table: noIndex}}, true},
		{"not active", &fakeDescriber{out: &dynamodb.DescribeTableOutput{Table: creating}}, true},
		{"describe fails", &fakeDescriber{err: errors.New("no such table")}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewDynamoRepositoryManager(tt.f, "vault")
			err := m.RunMigrations(context.Background())
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestDynamoManager_Vault(t *testing.T) {
	var m RepositoryManager = NewDynamoRepositoryManager(&fakeDescriber{}, "vault")
	assert.NotNil(t, m.Vault())
	assert.NoError(t, m.Close())
}

func TestMemoryManager(t *testing.T) {
	var m RepositoryManager = NewMemoryRepositoryManager()
	require.NoError(t, m.RunMigrations(context.Background()))
	assert.Same(t, m.Vault(), m.Vault())
	assert.NoError(t, m.Close())
}
