package storage

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	dbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/rs/zerolog"
)

// Key attributes of the wrap-up table
const (
	wrapupPartitionKey = "DateKey"
	wrapupSortKey      = "RecordID"
)

// CreateTablesIfNotExist creates the wrap-up table for local development
func CreateTablesIfNotExist(ctx context.Context, client *dynamodb.Client, config DynamoConfig, logger zerolog.Logger) error {
	_, err := client.DescribeTable(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(config.WrapupTable),
	})
	if err == nil {
		logger.Info().Str("table", config.WrapupTable).Msg("table already exists")
		return nil
	}

	_, err = client.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName: aws.String(config.WrapupTable),
		KeySchema: []dbtypes.KeySchemaElement{
			{AttributeName: aws.String(wrapupPartitionKey), KeyType: dbtypes.KeyTypeHash},
			{AttributeName: aws.String(wrapupSortKey), KeyType: dbtypes.KeyTypeRange},
		},
		AttributeDefinitions: []dbtypes.AttributeDefinition{
			{AttributeName: aws.String(wrapupPartitionKey), AttributeType: dbtypes.ScalarAttributeTypeS},
			{AttributeName: aws.String(wrapupSortKey), AttributeType: dbtypes.ScalarAttributeTypeS},
		},
		BillingMode: dbtypes.BillingModePayPerRequest,
	})
	if err != nil {
		return fmt.Errorf("failed to create table %s: %w", config.WrapupTable, err)
	}
	logger.Info().Str("table", config.WrapupTable).Msg("table created")
	return nil
}
