// Package secret persists migration credentials in AWS Secrets Manager.
package secret

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/google/uuid"

	awscloud "github.com/codebypatrickleung/sailover/internal/cloud/aws"
	"github.com/codebypatrickleung/sailover/internal/errdefs"
	"github.com/codebypatrickleung/sailover/internal/logger"
)

// TempPrefix names the provisional secrets created while a lifecycle
// transition is in flight. They are swept by DeleteTempSecrets.
const TempPrefix = "dr/temp/"

// SecretsAPI is the subset of the Secrets Manager client used by the manager.
type SecretsAPI interface {
	CreateSecret(ctx context.Context, in *secretsmanager.CreateSecretInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.CreateSecretOutput, error)
	GetSecretValue(ctx context.Context, in *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
	DeleteSecret(ctx context.Context, in *secretsmanager.DeleteSecretInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.DeleteSecretOutput, error)
	ListSecrets(ctx context.Context, in *secretsmanager.ListSecretsInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.ListSecretsOutput, error)
}

// Manager saves, loads and deletes stored credentials.
type Manager struct {
	client SecretsAPI
	logger *logger.Logger
}

// NewManager creates a credential manager.
func NewManager(client SecretsAPI, log *logger.Logger) *Manager {
	return &Manager{client: client, logger: log}
}

// SaveSecret persists a provisional credential and returns its secret ID.
func (m *Manager) SaveSecret(ctx context.Context, cred awscloud.Credential) (string, error) {
	body, err := json.Marshal(cred)
	if err != nil {
		return "", fmt.Errorf("failed to marshal credential: %w", err)
	}

	name := TempPrefix + uuid.NewString()
	if _, err := m.client.CreateSecret(ctx, &secretsmanager.CreateSecretInput{
		Name:         &name,
		SecretString: aws.String(string(body)),
	}); err != nil {
		return "", errdefs.Transport("save secret", err)
	}

	m.logger.Debugf("Saved credential as secret %s", name)
	return name, nil
}

// GetCredential loads the credential stored under the given secret ID.
func (m *Manager) GetCredential(ctx context.Context, secretID string) (awscloud.Credential, error) {
	out, err := m.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: &secretID,
	})
	if err != nil {
		return awscloud.Credential{}, errdefs.Transport("get secret", err)
	}

	var cred awscloud.Credential
	if out.SecretString == nil {
		return awscloud.Credential{}, errdefs.NotFound("secret", secretID)
	}
	if err := json.Unmarshal([]byte(*out.SecretString), &cred); err != nil {
		return awscloud.Credential{}, fmt.Errorf("failed to unmarshal secret %s: %w", secretID, err)
	}
	return cred, nil
}

// DeleteSecret removes the secret without a recovery window.
func (m *Manager) DeleteSecret(ctx context.Context, secretID string) error {
	if _, err := m.client.DeleteSecret(ctx, &secretsmanager.DeleteSecretInput{
		SecretId:                   &secretID,
		ForceDeleteWithoutRecovery: aws.Bool(true),
	}); err != nil {
		return errdefs.Transport("delete secret", err)
	}
	return nil
}

// DeleteTempSecrets sweeps every provisional secret left behind by earlier
// lifecycle transitions.
func (m *Manager) DeleteTempSecrets(ctx context.Context) error {
	input := &secretsmanager.ListSecretsInput{}
	for {
		out, err := m.client.ListSecrets(ctx, input)
		if err != nil {
			return errdefs.Transport("list secrets", err)
		}
		for _, entry := range out.SecretList {
			if entry.Name == nil || !strings.HasPrefix(*entry.Name, TempPrefix) {
				continue
			}
			if err := m.DeleteSecret(ctx, *entry.Name); err != nil {
				return err
			}
			m.logger.Debugf("Deleted temp secret %s", *entry.Name)
		}
		if out.NextToken == nil {
			return nil
		}
		input.NextToken = out.NextToken
	}
}
