// Package aws provides AWS client plumbing for the orchestration services.
package aws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/sfn"
)

// Credential is a static access key pair for one side of a migration pairing.
type Credential struct {
	AccessKeyID     string `json:"accessKeyId"`
	SecretAccessKey string `json:"secretAccessKey"`
}

// Provider returns a credentials provider backed by this static key pair.
func (c Credential) Provider() aws.CredentialsProvider {
	return credentials.NewStaticCredentialsProvider(c.AccessKeyID, c.SecretAccessKey, "")
}

// Clients builds AWS service clients for a single region.
type Clients struct {
	cfg aws.Config
}

// New creates a Clients instance for region using the default credential chain.
func New(ctx context.Context, region string) (*Clients, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config for region %s: %w", region, err)
	}
	return &Clients{cfg: cfg}, nil
}

// NewWithCredential creates a Clients instance for region using a static credential,
// typically the stored credential of the migration source account.
func NewWithCredential(ctx context.Context, region string, cred Credential) (*Clients, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(region),
		awsconfig.WithCredentialsProvider(cred.Provider()))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config for region %s: %w", region, err)
	}
	return &Clients{cfg: cfg}, nil
}

// EC2 returns an EC2 client.
func (c *Clients) EC2() *ec2.Client {
	return ec2.NewFromConfig(c.cfg)
}

// IAM returns an IAM client.
func (c *Clients) IAM() *iam.Client {
	return iam.NewFromConfig(c.cfg)
}

// DynamoDB returns a DynamoDB client.
func (c *Clients) DynamoDB() *dynamodb.Client {
	return dynamodb.NewFromConfig(c.cfg)
}

// Lambda returns a Lambda client.
func (c *Clients) Lambda() *lambda.Client {
	return lambda.NewFromConfig(c.cfg)
}

// StepFunctions returns a Step Functions client.
func (c *Clients) StepFunctions() *sfn.Client {
	return sfn.NewFromConfig(c.cfg)
}

// SecretsManager returns a Secrets Manager client.
func (c *Clients) SecretsManager() *secretsmanager.Client {
	return secretsmanager.NewFromConfig(c.cfg)
}
