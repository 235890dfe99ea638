// Package swfqueue implements taskqueue.ActivityQueue over AWS Simple
// Workflow, grounded directly on the original SwfWorker: resolve a region,
// register an activity type tolerating "already exists", poll long, and
// ignore poll responses that carry no task token (SWF's empty long-poll
// response).
package swfqueue

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/swf"
	"github.com/aws/aws-sdk-go-v2/service/swf/types"

	"github.com/balihoo/fulfillment-launcher/internal/taskqueue"
)

// ErrUnknownRegion is returned by New when region isn't one SWF is actually
// available in, the Go equivalent of the original's resolve_region raising
// UnknownRegionException.
var ErrUnknownRegion = errors.New("swfqueue: unknown region")

// swfRegions is the set of regions SWF is available in, mirroring the
// original's boto3-derived available-regions check for the service (SWF was
// never rolled out to every AWS region the way newer services are).
var swfRegions = map[string]bool{
	"us-east-1":      true,
	"us-east-2":      true,
	"us-west-1":      true,
	"us-west-2":      true,
	"eu-west-1":      true,
	"eu-central-1":   true,
	"ap-northeast-1": true,
	"ap-northeast-2": true,
	"ap-southeast-1": true,
	"ap-southeast-2": true,
	"sa-east-1":      true,
}

// Queue polls a single SWF activity task list.
type Queue struct {
	client   *swf.Client
	domain   string
	name     string
	version  string
	taskList string
}

// New constructs a Queue bound to domain, using name+version as both the
// activity type identity and the task list name, matching the original's
// `task_list = name + version` convention.
func New(ctx context.Context, region, domain, name, version string) (*Queue, error) {
	if !swfRegions[region] {
		return nil, fmt.Errorf("%w: %q", ErrUnknownRegion, region)
	}
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("swfqueue: load aws config: %w", err)
	}
	return &Queue{
		client:   swf.NewFromConfig(cfg),
		domain:   domain,
		name:     name,
		version:  version,
		taskList: name + version,
	}, nil
}

// Register registers the activity type, swallowing the "already exists"
// fault the way the original's register() does.
func (q *Queue) Register(ctx context.Context) error {
	_, err := q.client.RegisterActivityType(ctx, &swf.RegisterActivityTypeInput{
		Domain:  aws.String(q.domain),
		Name:    aws.String(q.name),
		Version: aws.String(q.version),
		DefaultTaskList: &types.TaskList{
			Name: aws.String(q.taskList),
		},
	})
	if err == nil {
		return nil
	}
	var already *types.TypeAlreadyExistsFault
	if errors.As(err, &already) {
		return nil
	}
	return fmt.Errorf("swfqueue: register activity type: %w", err)
}

// Poll long-polls for a single activity task. It returns (nil, nil) when
// the long-poll times out with no task, matching SWF's "empty taskToken"
// convention for an idle task list.
func (q *Queue) Poll(ctx context.Context) (*taskqueue.ActivityTask, error) {
	out, err := q.client.PollForActivityTask(ctx, &swf.PollForActivityTaskInput{
		Domain: aws.String(q.domain),
		TaskList: &types.TaskList{
			Name: aws.String(q.taskList),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("swfqueue: poll: %w", err)
	}
	if out.TaskToken == nil || *out.TaskToken == "" {
		return nil, nil
	}
	return &taskqueue.ActivityTask{
		TaskToken: *out.TaskToken,
		Input:     aws.ToString(out.Input),
	}, nil
}

// Complete reports successful completion of the task identified by token.
func (q *Queue) Complete(ctx context.Context, token, result string) error {
	_, err := q.client.RespondActivityTaskCompleted(ctx, &swf.RespondActivityTaskCompletedInput{
		TaskToken: aws.String(token),
		Result:    aws.String(result),
	})
	if err != nil {
		return fmt.Errorf("swfqueue: complete: %w", err)
	}
	return nil
}

// Fail reports failure of the task identified by token.
func (q *Queue) Fail(ctx context.Context, token, details string) error {
	_, err := q.client.RespondActivityTaskFailed(ctx, &swf.RespondActivityTaskFailedInput{
		TaskToken: aws.String(token),
		Details:   aws.String(details),
	})
	if err != nil {
		return fmt.Errorf("swfqueue: fail: %w", err)
	}
	return nil
}
