package secret

import (
	"context"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"

	awscloud "github.com/codebypatrickleung/sailover/internal/cloud/aws"
	"github.com/codebypatrickleung/sailover/internal/logger"
)

type mockSecrets struct {
	created   []string
	stored    map[string]string
	deleted   []string
	forced    bool
	listPages [][]string
	listCalls int
}

func (m *mockSecrets) CreateSecret(ctx context.Context, in *secretsmanager.CreateSecretInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.CreateSecretOutput, error) {
	m.created = append(m.created, *in.Name)
	if m.stored == nil {
		m.stored = make(map[string]string)
	}
	m.stored[*in.Name] = *in.SecretString
	return &secretsmanager.CreateSecretOutput{}, nil
}

func (m *mockSecrets) GetSecretValue(ctx context.Context, in *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
	value, ok := m.stored[*in.SecretId]
	if !ok {
		return &secretsmanager.GetSecretValueOutput{}, nil
	}
	return &secretsmanager.GetSecretValueOutput{SecretString: aws.String(value)}, nil
}

func (m *mockSecrets) DeleteSecret(ctx context.Context, in *secretsmanager.DeleteSecretInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.DeleteSecretOutput, error) {
	m.forced = in.ForceDeleteWithoutRecovery != nil && *in.ForceDeleteWithoutRecovery
	m.deleted = append(m.deleted, *in.SecretId)
	return &secretsmanager.DeleteSecretOutput{}, nil
}

func (m *mockSecrets) ListSecrets(ctx context.Context, in *secretsmanager.ListSecretsInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.ListSecretsOutput, error) {
	page := m.listCalls
	m.listCalls++
	out := &secretsmanager.ListSecretsOutput{}
	for _, name := range m.listPages[page] {
		out.SecretList = append(out.SecretList, types.SecretListEntry{Name: aws.String(name)})
	}
	if page+1 < len(m.listPages) {
		out.NextToken = aws.String("next")
	}
	return out, nil
}

func TestSaveAndGetCredential(t *testing.T) {
	client := &mockSecrets{}
	manager := NewManager(client, logger.New(false))

	cred := awscloud.Credential{AccessKeyID: "AKIA123", SecretAccessKey: "secret"}
	secretID, err := manager.SaveSecret(context.Background(), cred)
	if err != nil {
		t.Fatalf("SaveSecret failed: %v", err)
	}
	if !strings.HasPrefix(secretID, TempPrefix) {
		t.Errorf("Expected provisional secret under %s, got %s", TempPrefix, secretID)
	}

	got, err := manager.GetCredential(context.Background(), secretID)
	if err != nil {
		t.Fatalf("GetCredential failed: %v", err)
	}
	if got != cred {
		t.Errorf("Expected round-tripped credential, got %+v", got)
	}
}

func TestGetCredentialMissing(t *testing.T) {
	client := &mockSecrets{}
	manager := NewManager(client, logger.New(false))

	if _, err := manager.GetCredential(context.Background(), "dr/unknown"); err == nil {
		t.Fatal("Expected error for a secret with no value")
	}
}

func TestDeleteTempSecrets(t *testing.T) {
	client := &mockSecrets{
		listPages: [][]string{
			{TempPrefix + "a", "dr/p-1/source"},
			{TempPrefix + "b"},
		},
	}
	manager := NewManager(client, logger.New(false))

	if err := manager.DeleteTempSecrets(context.Background()); err != nil {
		t.Fatalf("DeleteTempSecrets failed: %v", err)
	}
	if client.listCalls != 2 {
		t.Errorf("Expected both listing pages to be swept, got %d calls", client.listCalls)
	}
	if len(client.deleted) != 2 {
		t.Fatalf("Expected 2 temp secrets deleted, got %v", client.deleted)
	}
	if !client.forced {
		t.Error("Expected deletion without a recovery window")
	}
	for _, name := range client.deleted {
		if !strings.HasPrefix(name, TempPrefix) {
			t.Errorf("Deleted non-provisional secret %s", name)
		}
	}
}
