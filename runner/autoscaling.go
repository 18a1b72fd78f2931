package runner

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/foremast/foremast/settings"
	"github.com/foremast/foremast/spinnaker"
)

const (
	defaultStatistic      = "Average"
	defaultPeriodMinutes  = 5
	defaultInstanceWarmup = 600
)

// CreateScalingPolicy attaches the configured scaling policies to the
// newest server group of the application in each env and region.
func CreateScalingPolicy(ctx context.Context, opts Options) error {
	r, err := newRunner(opts)
	if err != nil {
		return err
	}
	return r.CreateScalingPolicy(ctx)
}

// CreateScalingPolicy submits upsertScalingPolicy tasks for every env with
// an asg.scaling_policy setting. Env and Region options narrow the run.
func (r *Runner) CreateScalingPolicy(ctx context.Context) error {
	log := r.log.InFunc("CreateScalingPolicy")

	s, err := r.Settings(ctx)
	if err != nil {
		return err
	}

	envs := s.Pipeline.Env
	if r.Env != "" {
		envs = []string{r.Env}
	}

	var groups []*spinnaker.ServerGroup
	for _, env := range envs {
		envSettings := s.Envs[env]
		if envSettings == nil || envSettings.Asg.ScalingPolicy == nil {
			log.Infof("no scaling policy configured for %s", env)
			continue
		}

		regions := envSettings.Regions
		if r.Region != "" {
			regions = []string{r.Region}
		}
		if len(regions) == 0 {
			log.Warnf("no regions configured for %s, skipping scaling policy", env)
			continue
		}

		if groups == nil {
			if groups, err = r.Gate.GetServerGroups(ctx, r.AppName); err != nil {
				return errors.Wrapf(err, "listing server groups of %s", r.AppName)
			}
		}

		for _, region := range regions {
			group := newestServerGroup(groups, env, region)
			if group == nil {
				return errors.Errorf("%s has no server group in %s/%s", r.AppName, env, region)
			}
			task := scalingPolicyTask(r.AppName, env, region, group.Name, envSettings.Asg.ScalingPolicy)
			id, err := r.Gate.PostTask(ctx, task)
			if err != nil {
				return errors.Wrapf(err, "creating scaling policy for %s", group.Name)
			}
			if err := r.Gate.WaitForTask(ctx, id); err != nil {
				return errors.Wrapf(err, "creating scaling policy for %s", group.Name)
			}
			log.Infof("scaling policy applied to %s in %s/%s", group.Name, env, region)
		}
	}
	return nil
}

func newestServerGroup(groups []*spinnaker.ServerGroup, env, region string) *spinnaker.ServerGroup {
	var newest *spinnaker.ServerGroup
	for _, g := range groups {
		if g.Account != env || g.Region != region || g.Disabled {
			continue
		}
		if newest == nil || g.CreatedTime > newest.CreatedTime {
			newest = g
		}
	}
	return newest
}

func scalingPolicyTask(app, env, region, serverGroup string, policy *settings.ScalingPolicy) *spinnaker.Task {
	statistic := policy.Statistic
	if statistic == "" {
		statistic = defaultStatistic
	}
	period := policy.PeriodMinutes
	if period == 0 {
		period = defaultPeriodMinutes
	}
	warmup := policy.InstanceWarmup
	if warmup == 0 {
		warmup = defaultInstanceWarmup
	}
	increase := policy.IncreaseScalingAdjustment
	if increase == 0 {
		increase = 1
	}
	decrease := policy.DecreaseScalingAdjustment
	if decrease == 0 {
		decrease = -1
	}

	job := func(operator string, adjustment int) map[string]interface{} {
		return map[string]interface{}{
			"type":            "upsertScalingPolicy",
			"cloudProvider":   "aws",
			"credentials":     env,
			"region":          region,
			"serverGroupName": serverGroup,
			"adjustmentType":  "ChangeInCapacity",
			"alarm": map[string]interface{}{
				"region":             region,
				"comparisonOperator": operator,
				"metricName":         policy.Metric,
				"namespace":          "AWS/EC2",
				"statistic":          statistic,
				"period":             period * 60,
				"threshold":          policy.Threshold,
				"evaluationPeriods":  1,
				"dimensions": []map[string]string{
					{"name": "AutoScalingGroupName", "value": serverGroup},
				},
			},
			"simple": map[string]interface{}{
				"scalingAdjustment": adjustment,
				"cooldown":          warmup,
			},
		}
	}

	jobs := []map[string]interface{}{job("GreaterThanThreshold", increase)}
	if policy.ScaleDown {
		jobs = append(jobs, job("LessThanThreshold", decrease))
	}

	return &spinnaker.Task{
		Application: app,
		Description: fmt.Sprintf("Upsert scaling policy for %s", serverGroup),
		Job:         jobs,
	}
}
