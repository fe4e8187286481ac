package sns

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"

	"github.com/attendance-notifier/internal/config"
	"github.com/attendance-notifier/internal/domain"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
)

var endpointARN = regexp.MustCompile(`^arn:aws[a-z-]*:sns:[a-z0-9-]+:\d{12}:endpoint/[^/]+/[^/]+/.+$`)

// Publisher is the subset of the SNS client the transport uses.
type Publisher interface {
	Publish(ctx context.Context, in *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// Transport delivers push messages to SNS mobile platform endpoints.
// Push tokens are endpoint ARNs registered by the mobile client.
type Transport struct {
	client Publisher
}

func NewTransport(client Publisher) *Transport {
	return &Transport{client: client}
}

// NewClient creates an SNS client for cfg.SNSRegion.
func NewClient(ctx context.Context, cfg *config.Config) (*sns.Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.SNSRegion),
	}
	if cfg.AWSAccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AWSAccessKeyID, cfg.AWSSecretKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, err
	}
	var clientOpts []func(*sns.Options)
	if cfg.AWSEndpointURL != "" {
		clientOpts = append(clientOpts, func(o *sns.Options) {
			o.BaseEndpoint = aws.String(cfg.AWSEndpointURL)
		})
	}
	return sns.NewFromConfig(awsCfg, clientOpts...), nil
}

func (t *Transport) ValidToken(token string) bool {
	return endpointARN.MatchString(token)
}

// BatchLimit is zero: Send publishes one message per call, so any batch size works.
func (t *Transport) BatchLimit() int {
	return 0
}

// Send publishes each message to its endpoint. Rejections for a single endpoint
// become error tickets; any other failure aborts the batch.
func (t *Transport) Send(ctx context.Context, msgs []domain.PushMessage) ([]domain.PushTicket, error) {
	tickets := make([]domain.PushTicket, 0, len(msgs))
	for _, m := range msgs {
		payload, err := platformPayload(m)
		if err != nil {
			return nil, err
		}
		out, err := t.client.Publish(ctx, &sns.PublishInput{
			TargetArn:        aws.String(m.To),
			Message:          aws.String(payload),
			MessageStructure: aws.String("json"),
		})
		if err != nil {
			if reason, ok := endpointRejection(err); ok {
				tickets = append(tickets, domain.ErrorTicket(reason))
				continue
			}
			return nil, fmt.Errorf("sns publish: %w", err)
		}
		tickets = append(tickets, domain.OKTicket(aws.ToString(out.MessageId)))
	}
	return tickets, nil
}

func endpointRejection(err error) (string, bool) {
	var disabled *types.EndpointDisabledException
	if errors.As(err, &disabled) {
		return "EndpointDisabled: " + disabled.ErrorMessage(), true
	}
	var invalid *types.InvalidParameterException
	if errors.As(err, &invalid) {
		return "InvalidParameter: " + invalid.ErrorMessage(), true
	}
	var appDisabled *types.PlatformApplicationDisabledException
	if errors.As(err, &appDisabled) {
		return "PlatformApplicationDisabled: " + appDisabled.ErrorMessage(), true
	}
	return "", false
}

// platformPayload renders the per-platform JSON envelope SNS expects with MessageStructure=json.
func platformPayload(m domain.PushMessage) (string, error) {
	apns, err := json.Marshal(map[string]any{
		"aps": map[string]any{
			"alert": map[string]string{"title": m.Title, "body": m.Body},
			"sound": "default",
			"badge": 1,
		},
		"data": m.Data,
	})
	if err != nil {
		return "", err
	}
	priority := "normal"
	if m.Priority == domain.PriorityHigh {
		priority = "high"
	}
	fcm, err := json.Marshal(map[string]any{
		"notification": map[string]string{"title": m.Title, "body": m.Body},
		"data":         m.Data,
		"priority":     priority,
	})
	if err != nil {
		return "", err
	}
	envelope, err := json.Marshal(map[string]string{
		"default":      m.Body,
		"APNS":         string(apns),
		"APNS_SANDBOX": string(apns),
		"GCM":          string(fcm),
	})
	if err != nil {
		return "", err
	}
	return string(envelope), nil
}
