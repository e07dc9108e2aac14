// Package aws validates AWS cross-account role credentials by assuming
// the role via STS and probing EC2 with the temporary session.
package aws

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/aws/smithy-go"

	"github.com/cloudmesh/cloudmesh/internal/domain/model"
	"github.com/cloudmesh/cloudmesh/internal/domain/port/driven"
)

var _ driven.Validator = (*Validator)(nil)

// Temporary session lifetime for the validation probe. The minimum STS
// allows; the session is discarded immediately after the EC2 call.
const sessionDurationSeconds = 900

var regionPattern = regexp.MustCompile(`^[a-z]{2}(-gov)?-[a-z]+-\d$`)

// Validator checks AWS credentials configured as an assumable IAM role.
// The platform's own access key pair is used to call sts:AssumeRole on
// the customer's role ARN.
type Validator struct {
	accessKeyID     string
	secretAccessKey string
	defaultRegion   string
	logger          *slog.Logger
}

// NewValidator creates an AWS validator backed by the platform's own
// access key pair. defaultRegion falls back to us-east-1 when empty.
func NewValidator(accessKeyID, secretAccessKey, defaultRegion string, logger *slog.Logger) *Validator {
	if defaultRegion == "" {
		defaultRegion = "us-east-1"
	}
	return &Validator{
		accessKeyID:     accessKeyID,
		secretAccessKey: secretAccessKey,
		defaultRegion:   defaultRegion,
		logger:          logger.With(slog.String("validator", "aws")),
	}
}

// Provider implements driven.Validator.
func (v *Validator) Provider() model.CloudProvider {
	return model.ProviderAWS
}

// ValidateFormat checks the role ARN, external id and optional region
// without any network calls.
func (v *Validator) ValidateFormat(config map[string]string) model.ValidationResult {
	roleArn := config["roleArn"]
	if roleArn == "" {
		return model.FailureResult("Missing required field", "roleArn is required")
	}
	if !strings.HasPrefix(roleArn, "arn:aws:iam::") || !strings.Contains(roleArn, ":role/") {
		return model.FailureResult("Invalid role ARN format",
			"roleArn must look like arn:aws:iam::<account-id>:role/<role-name>")
	}

	if config["externalId"] == "" {
		return model.FailureResult("Missing required field", "externalId is required")
	}

	if region := config["region"]; region != "" && !regionPattern.MatchString(region) {
		return model.FailureResult("Invalid region format",
			fmt.Sprintf("%q is not a valid AWS region name", region))
	}

	return model.SuccessResult("Format valid", "")
}

// Validate assumes the configured role and lists EC2 regions with the
// temporary session credentials.
func (v *Validator) Validate(ctx context.Context, config map[string]string) model.ValidationResult {
	if res := v.ValidateFormat(config); !res.Valid {
		return res
	}
	if v.accessKeyID == "" || v.secretAccessKey == "" {
		return model.FailureResult("Configuration error",
			"platform AWS credentials are not configured")
	}

	region := config["region"]
	if region == "" {
		region = v.defaultRegion
	}

	platformCfg := aws.Config{
		Region:      region,
		Credentials: credentials.NewStaticCredentialsProvider(v.accessKeyID, v.secretAccessKey, ""),
	}

	roleArn := config["roleArn"]
	sessionName := fmt.Sprintf("cloudmesh-validation-%d", time.Now().UnixMilli())

	stsClient := sts.NewFromConfig(platformCfg)
	assumed, err := stsClient.AssumeRole(ctx, &sts.AssumeRoleInput{
		RoleArn:         aws.String(roleArn),
		RoleSessionName: aws.String(sessionName),
		ExternalId:      aws.String(config["externalId"]),
		DurationSeconds: aws.Int32(sessionDurationSeconds),
	})
	if err != nil {
		v.logger.Debug("assume role failed", slog.String("role_arn", roleArn), slog.Any("error", err))
		return classifyAssumeRoleError(err)
	}

	sessionCfg := aws.Config{
		Region: region,
		Credentials: credentials.NewStaticCredentialsProvider(
			aws.ToString(assumed.Credentials.AccessKeyId),
			aws.ToString(assumed.Credentials.SecretAccessKey),
			aws.ToString(assumed.Credentials.SessionToken),
		),
	}

	ec2Client := ec2.NewFromConfig(sessionCfg)
	if _, err := ec2Client.DescribeRegions(ctx, &ec2.DescribeRegionsInput{}); err != nil {
		v.logger.Debug("describe regions failed", slog.String("role_arn", roleArn), slog.Any("error", err))
		return classifyProbeError(err)
	}

	return model.SuccessResult("AWS credentials validated",
		fmt.Sprintf("assumed role %s in %s", roleArn, region))
}

// classifyAssumeRoleError maps an sts:AssumeRole failure onto a result
// the owner can act on.
func classifyAssumeRoleError(err error) model.ValidationResult {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		msg := apiErr.ErrorMessage()
		switch {
		case code == "AccessDenied":
			return model.FailureResult("Role assumption denied",
				"check the role's trust policy and the externalId condition")
		case strings.Contains(msg, "not found") || strings.Contains(msg, "does not exist"):
			return model.FailureResult("Role not found",
				"the role ARN does not exist or is not assumable")
		default:
			return model.FailureResult("Role assumption failed",
				fmt.Sprintf("%s: %s", code, msg))
		}
	}
	return model.FailureResult("AWS connection failed", err.Error())
}

// classifyProbeError maps an EC2 probe failure. A role that can be
// assumed but cannot describe regions is still a working credential,
// so anything other than an explicit authorization denial counts as a
// partial success.
func classifyProbeError(err error) model.ValidationResult {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		if apiErr.ErrorCode() == "UnauthorizedOperation" {
			return model.FailureResult("Insufficient permissions",
				"the role was assumed but lacks ec2:DescribeRegions")
		}
	}
	return model.SuccessResult("AWS credentials validated (partial)",
		"role assumed successfully; EC2 probe could not complete")
}
