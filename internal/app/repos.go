package app

import (
	"gorm.io/gorm"

	"github.com/yungbote/fractal-backend/internal/data/repos"
	"github.com/yungbote/fractal-backend/internal/platform/logger"
)

type Repos struct {
	Goal               repos.GoalRepo
	Target             repos.TargetRepo
	Session            repos.SessionRepo
	ActivityInstance   repos.ActivityInstanceRepo
	ActivityDefinition repos.ActivityDefinitionRepo
	MetricDefinition   repos.MetricDefinitionRepo
	Program            repos.ProgramRepo
	ProgramBlock       repos.ProgramBlockRepo
	ProgramDay         repos.ProgramDayRepo
	SessionTemplate    repos.SessionTemplateRepo
	EventLog           repos.EventLogRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		Goal:               repos.NewGoalRepo(db, log),
		Target:             repos.NewTargetRepo(db, log),
		Session:            repos.NewSessionRepo(db, log),
		ActivityInstance:   repos.NewActivityInstanceRepo(db, log),
		ActivityDefinition: repos.NewActivityDefinitionRepo(db, log),
		MetricDefinition:   repos.NewMetricDefinitionRepo(db, log),
		Program:            repos.NewProgramRepo(db, log),
		ProgramBlock:       repos.NewProgramBlockRepo(db, log),
		ProgramDay:         repos.NewProgramDayRepo(db, log),
		SessionTemplate:    repos.NewSessionTemplateRepo(db, log),
		EventLog:           repos.NewEventLogRepo(db, log),
	}
}
