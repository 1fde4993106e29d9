package services

import (
	"context"
	"errors"
	"fmt"

	"gigbook-backend/dal"
	"gigbook-backend/models"
	"gigbook-backend/utils/logger"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
)

type InfrastructureService struct {
	db          dal.DatabaseClientInterface
	provisioner ProvisionerInterface
	logger      logger.Logger
	config      *models.Config
}

func NewInfrastructureService(db dal.DatabaseClientInterface, provisioner ProvisionerInterface, logger logger.Logger, config *models.Config) *InfrastructureService {
	return &InfrastructureService{
		db:          db,
		provisioner: provisioner,
		logger:      logger,
		config:      config,
	}
}

// tableNames returns the configured base tables, or the three contact tables
func (s *InfrastructureService) tableNames() []string {
	if len(s.config.Tables) > 0 {
		return s.config.Tables
	}
	return []string{models.TableOrganizations, models.TablePersons, models.TableLinks}
}

// TableStatuses describes every contact table. Missing tables are reported, not failed.
func (s *InfrastructureService) TableStatuses(ctx context.Context) ([]models.TableStatus, error) {
	statuses := []models.TableStatus{}
	for _, base := range s.tableNames() {
		name := s.config.TableName(base)
		status := models.TableStatus{Name: name, BaseName: base, Indexes: []string{}}

		out, err := s.db.DescribeTable(ctx, name)
		if err != nil {
			if !isTableNotFound(err) {
				s.logger.Errorf("Failed to describe table %s: %v", name, err)
				return nil, fmt.Errorf("failed to describe table %s: %w", name, err)
			}
			status.Status = models.TableStatusMissing
			statuses = append(statuses, status)
			continue
		}

		table := out.Table
		status.Status = string(table.TableStatus)
		status.ItemCount = aws.ToInt64(table.ItemCount)
		for _, gsi := range table.GlobalSecondaryIndexes {
			status.Indexes = append(status.Indexes, aws.ToString(gsi.IndexName))
		}
		if table.StreamSpecification != nil {
			status.StreamEnabled = aws.ToBool(table.StreamSpecification.StreamEnabled)
		}
		statuses = append(statuses, status)
	}
	return statuses, nil
}

// IsHealthy reports whether every contact table is active with its change stream enabled
func (s *InfrastructureService) IsHealthy(ctx context.Context) (bool, string, error) {
	statuses, err := s.TableStatuses(ctx)
	if err != nil {
		return false, "", err
	}
	for _, st := range statuses {
		if st.Status != string(types.TableStatusActive) {
			return false, fmt.Sprintf("table %s is %s", st.Name, st.Status), nil
		}
		if !st.StreamEnabled {
			return false, fmt.Sprintf("table %s has no change stream", st.Name), nil
		}
	}
	return true, "all contact tables are active", nil
}

// Provision creates the missing contact tables
func (s *InfrastructureService) Provision(ctx context.Context) (*models.ProvisioningResult, error) {
	if s.provisioner == nil {
		return nil, errors.New("table provisioning is not available")
	}
	s.logger.Info("Provisioning contact tables on demand")
	return s.provisioner.Provision(ctx)
}

// isTableNotFound checks the smithy error code shared by DynamoDB and the memory store
func isTableNotFound(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode() == "ResourceNotFoundException"
	}
	return false
}
