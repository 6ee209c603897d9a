package notify

import (
	"context"
	"errors"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"

	"dental-clinic/internal/domain/notifications"
)

// SNSPublisher es el subconjunto de *sns.Client que usamos.
type SNSPublisher interface {
	Publish(ctx context.Context, in *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// SNSSender manda SMS transaccionales vía Amazon SNS.
type SNSSender struct {
	client   SNSPublisher
	senderID string
}

// NewSNSSender carga credenciales de la cadena por defecto de AWS.
func NewSNSSender(ctx context.Context, region, senderID string) (*SNSSender, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, err
	}
	return &SNSSender{client: sns.NewFromConfig(cfg), senderID: senderID}, nil
}

func NewSNSSenderWithClient(client SNSPublisher, senderID string) *SNSSender {
	return &SNSSender{client: client, senderID: senderID}
}

func (s *SNSSender) Send(ctx context.Context, m notifications.Message) error {
	phone := strings.TrimSpace(m.Recipient)
	if !strings.HasPrefix(phone, "+") {
		return errors.New("sns: recipient must be E.164")
	}
	attrs := map[string]types.MessageAttributeValue{
		"AWS.SNS.SMS.SMSType": {DataType: aws.String("String"), StringValue: aws.String("Transactional")},
	}
	if s.senderID != "" {
		attrs["AWS.SNS.SMS.SenderID"] = types.MessageAttributeValue{DataType: aws.String("String"), StringValue: aws.String(s.senderID)}
	}
	_, err := s.client.Publish(ctx, &sns.PublishInput{
		PhoneNumber:       aws.String(phone),
		Message:           aws.String(m.Body),
		MessageAttributes: attrs,
	})
	return err
}
