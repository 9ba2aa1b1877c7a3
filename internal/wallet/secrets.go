package wallet

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/ownafarm/ownafarm-gateway/internal/logger"
	"go.uber.org/zap"
)

// SecretsManagerClient wraps the AWS Secrets Manager client for signer
// key retrieval.
type SecretsManagerClient struct {
	svc *secretsmanager.Client
}

// NewSecretsManagerClient creates a Secrets Manager client using the
// default AWS configuration chain (environment variables, shared config,
// IAM role).
func NewSecretsManagerClient(ctx context.Context) (*SecretsManagerClient, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("unable to load AWS SDK config: %w", err)
	}
	return &SecretsManagerClient{svc: secretsmanager.NewFromConfig(cfg)}, nil
}

// GetSignerKey fetches the admin signer key. When secretARN is set the
// key comes from Secrets Manager, stored as plain text or as a
// single-key JSON object; otherwise the fallback environment variable is
// read directly. Key material is never logged.
func (c *SecretsManagerClient) GetSignerKey(ctx context.Context, secretARN, fallbackEnvVar string) (string, error) {
	if secretARN != "" {
		logger.Debug("Fetching signer key from Secrets Manager", zap.String("secretArn", secretARN))

		result, err := c.svc.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
			SecretId: aws.String(secretARN),
		})
		if err == nil && result.SecretString != nil && *result.SecretString != "" {
			fetched := *result.SecretString

			var secretJSON map[string]string
			if jsonErr := json.Unmarshal([]byte(fetched), &secretJSON); jsonErr == nil && len(secretJSON) == 1 {
				for key, value := range secretJSON {
					logger.Info("Loaded signer key from Secrets Manager (single-key JSON)",
						zap.String("secretArn", secretARN),
						zap.String("jsonKey", key),
					)
					return value, nil
				}
			}

			logger.Info("Loaded signer key from Secrets Manager", zap.String("secretArn", secretARN))
			return fetched, nil
		}

		logger.Warn("Failed to retrieve signer key from Secrets Manager, falling back to env var",
			zap.String("secretArn", secretARN),
			zap.String("fallbackEnvVar", fallbackEnvVar),
			zap.Error(err),
		)
	}

	if value := os.Getenv(fallbackEnvVar); value != "" {
		logger.Info("Using signer key from environment variable", zap.String("envVar", fallbackEnvVar))
		return value, nil
	}

	return "", fmt.Errorf("signer key not found via secret ARN or env var '%s'", fallbackEnvVar)
}
