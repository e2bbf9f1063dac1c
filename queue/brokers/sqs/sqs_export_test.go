package sqs

import (
	"encoding/json"
	"errors"
	"sync"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/sqs/sqsiface"

	awssqs "github.com/aws/aws-sdk-go/service/sqs"

	"github.com/matchboxhq/matchbox/config"
	"github.com/matchboxhq/matchbox/queue/brokers/iface"
	"github.com/matchboxhq/matchbox/queue/common"
)

// ReceiveMessageOutput is a canned response shared by the fake SQS clients
var ReceiveMessageOutput *awssqs.ReceiveMessageOutput

type FakeSQS struct {
	sqsiface.SQSAPI
}

func (f *FakeSQS) SendMessage(*awssqs.SendMessageInput) (*awssqs.SendMessageOutput, error) {
	output := awssqs.SendMessageOutput{
		MD5OfMessageAttributes: aws.String("d25a6aea97eb8f585bfa92d314504a92"),
		MD5OfMessageBody:       aws.String("bbdc5fdb8be7251f5c910905db994bab"),
		MessageId:              aws.String("47f8b355-5115-4b45-b33a-439016400411"),
	}
	return &output, nil
}

func (f *FakeSQS) SendMessageWithContext(ctx aws.Context, input *awssqs.SendMessageInput, opts ...request.Option) (*awssqs.SendMessageOutput, error) {
	return f.SendMessage(input)
}

func (f *FakeSQS) ReceiveMessage(*awssqs.ReceiveMessageInput) (*awssqs.ReceiveMessageOutput, error) {
	return ReceiveMessageOutput, nil
}

func (f *FakeSQS) DeleteMessage(*awssqs.DeleteMessageInput) (*awssqs.DeleteMessageOutput, error) {
	return &awssqs.DeleteMessageOutput{}, nil
}

type ErrorSQS struct {
	sqsiface.SQSAPI
}

func (e *ErrorSQS) SendMessage(*awssqs.SendMessageInput) (*awssqs.SendMessageOutput, error) {
	return nil, errors.New("this is an error")
}

func (e *ErrorSQS) SendMessageWithContext(ctx aws.Context, input *awssqs.SendMessageInput, opts ...request.Option) (*awssqs.SendMessageOutput, error) {
	return nil, errors.New("this is an error")
}

func (e *ErrorSQS) ReceiveMessage(*awssqs.ReceiveMessageInput) (*awssqs.ReceiveMessageOutput, error) {
	return nil, errors.New("this is an error")
}

func (e *ErrorSQS) DeleteMessage(*awssqs.DeleteMessageInput) (*awssqs.DeleteMessageOutput, error) {
	return nil, errors.New("this is an error")
}

func init() {
	messageBody, _ := json.Marshal(map[string]int{"apple": 5, "lettuce": 7})
	ReceiveMessageOutput = &awssqs.ReceiveMessageOutput{
		Messages: []*awssqs.Message{
			{
				Attributes: map[string]*string{
					"SentTimestamp": aws.String("1512962021537"),
				},
				Body:          aws.String(string(messageBody)),
				MD5OfBody:     aws.String("bbdc5fdb8be7251f5c910905db994bab"),
				MessageId:     aws.String("47f8b355-5115-4b45-b33a-439016400411"),
				ReceiptHandle: aws.String("receipt-handle-test"),
			},
		},
	}
}

// NewTestConfig returns a config pointing at a fake SQS endpoint with an eager
// result backend so no external services are needed
func NewTestConfig() *config.Config {
	return &config.Config{
		Broker:        "https://sqs.foo.amazonaws.com.cn",
		DefaultQueue:  "test_queue",
		ResultBackend: "eager",
	}
}

func newTestBroker(svc sqsiface.SQSAPI) *Broker {
	sess := session.Must(session.NewSessionWithOptions(session.Options{
		SharedConfigState: session.SharedConfigEnable,
	}))
	return &Broker{
		Broker:            common.NewBroker(NewTestConfig()),
		sess:              sess,
		service:           svc,
		processingWG:      sync.WaitGroup{},
		receivingWG:       sync.WaitGroup{},
		stopReceivingChan: make(chan int),
	}
}

// NewTestBroker returns a broker backed by a fake SQS client which always succeeds
func NewTestBroker() *Broker {
	return newTestBroker(new(FakeSQS))
}

// NewTestErrorBroker returns a broker backed by a fake SQS client which always errors
func NewTestErrorBroker() *Broker {
	return newTestBroker(new(ErrorSQS))
}

func (b *Broker) ConsumeForTest(deliveries <-chan *awssqs.ReceiveMessageOutput, concurrency int, taskProcessor iface.TaskProcessor, pool chan struct{}) error {
	return b.consume(deliveries, concurrency, taskProcessor, pool)
}

func (b *Broker) ConsumeOneForTest(delivery *awssqs.ReceiveMessageOutput, taskProcessor iface.TaskProcessor) error {
	return b.consumeOne(delivery, taskProcessor)
}

func (b *Broker) DeleteOneForTest(delivery *awssqs.ReceiveMessageOutput) error {
	return b.deleteOne(delivery)
}

func (b *Broker) DefaultQueueURLForTest() *string {
	return b.defaultQueueURL()
}

func (b *Broker) ReceiveMessageForTest(qURL *string) (*awssqs.ReceiveMessageOutput, error) {
	return b.receiveMessage(qURL)
}

func (b *Broker) ConsumeDeliveriesForTest(deliveries <-chan *awssqs.ReceiveMessageOutput, concurrency int, taskProcessor iface.TaskProcessor, pool chan struct{}, errorsChan chan error) (bool, error) {
	return b.consumeDeliveries(deliveries, concurrency, taskProcessor, pool, errorsChan)
}

func (b *Broker) StopReceivingForTest() {
	b.stopReceiving()
}

func (b *Broker) GetStopReceivingChanForTest() chan int {
	return b.stopReceivingChan
}

func (b *Broker) StartConsumingForTest(consumerTag string, concurrency int, taskProcessor iface.TaskProcessor) {
	b.Broker.StartConsuming(consumerTag, concurrency, taskProcessor)
}

func (b *Broker) GetRetryFuncForTest() func(chan int) {
	return b.GetRetryFunc()
}

func (b *Broker) GetStopChanForTest() chan int {
	return b.GetStopChan()
}

func (b *Broker) GetRetryStopChanForTest() chan int {
	return b.GetRetryStopChan()
}

func (b *Broker) GetQueueURLForTest(taskProcessor iface.TaskProcessor) *string {
	return b.getQueueURL(taskProcessor)
}

func (b *Broker) GetCustomQueueURL(customQueue string) *string {
	return aws.String(b.GetConfig().Broker + "/" + customQueue)
}
