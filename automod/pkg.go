package automod

import (
	"github.com/hivewatch/hivewatch/automod/engine"
	"github.com/hivewatch/hivewatch/automod/platform"
	"github.com/hivewatch/hivewatch/automod/scheduler"
	"github.com/hivewatch/hivewatch/automod/settings"
)

type Engine = engine.Engine
type Verdict = engine.Verdict
type EvalOptions = engine.EvalOptions
type Settings = settings.Settings
type ModAction = platform.ModAction
type JobEvent = scheduler.JobEvent

var (
	ModActionBan            = platform.ModActionBan
	ModActionUnban          = platform.ModActionUnban
	ModActionApproveComment = platform.ModActionApproveComment
	ModActionApprovePost    = platform.ModActionApprovePost
)
