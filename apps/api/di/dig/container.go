package dig_container

import (
	"fmt"
	"log"
	"os"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	echoapi "github.com/trezcool/campus/apps/api/echo"
	"github.com/trezcool/campus/core"
	"github.com/trezcool/campus/core/academic"
	"github.com/trezcool/campus/core/announcement"
	"github.com/trezcool/campus/core/attendance"
	"github.com/trezcool/campus/core/dashboard"
	"github.com/trezcool/campus/core/exam"
	"github.com/trezcool/campus/core/fee"
	"github.com/trezcool/campus/core/homework"
	"github.com/trezcool/campus/core/notification"
	"github.com/trezcool/campus/core/policy"
	"github.com/trezcool/campus/core/roster"
	"github.com/trezcool/campus/core/user"
	"github.com/trezcool/campus/services/blob"
	emailsvc "github.com/trezcool/campus/services/email"
	"github.com/trezcool/campus/services/jobs"
	logsvc "github.com/trezcool/campus/services/logger"
	"github.com/trezcool/campus/services/realtime"
	"github.com/trezcool/campus/storage/database"
	sqlxrepos "github.com/trezcool/campus/storage/database/sqlx"
)

type DBLoggerParam struct {
	dig.In
	Logger core.Logger `name:"dbLogger"`
}

func newLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "API : ", log.LstdFlags)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug)
	return logger
}

func newDBLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug)
	return logger
}

func newDB(conf *core.Config, loggerParam DBLoggerParam) (*sqlx.DB, core.Transactor) {
	setUp := func() (*sqlx.DB, error) {
		if err := database.CreateIfNotExist(conf); err != nil {
			return nil, err
		}

		db, err := database.Open(conf)
		if err != nil {
			return nil, err
		}

		if err = database.Migrate(db.DB, "up"); err != nil {
			return nil, err
		}
		return db, nil
	}

	db, err := setUp()
	if err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	return db, database.NewTransactor(db)
}

func newEmailService(conf *core.Config, logger core.Logger) core.EmailService {
	if conf.Debug {
		return emailsvc.NewConsoleService(conf, logger)
	}
	return emailsvc.NewSendgridService(conf, logger)
}

func newTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}

func newValidator(translator ut.Translator) *validator.Validate {
	validate := validator.New()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	attendance.InitValidators(validate, translator)
	return validate
}

// Services

func newNotificationService(repo notification.Repository, hub *realtime.Hub, logger core.Logger) *notification.Service {
	return notification.NewService(repo, hub, logger)
}

func newAcademicService(repo academic.Repository, tx core.Transactor, pol *policy.Policy, users *user.Service) *academic.Service {
	return academic.NewService(repo, tx, pol, users)
}

func newRosterService(
	repo roster.Repository,
	tx core.Transactor,
	pol *policy.Policy,
	users *user.Service,
	academics *academic.Service,
	notifications *notification.Service,
) *roster.Service {
	return roster.NewService(repo, tx, pol, users, academics, notifications)
}

func newAttendanceService(repo attendance.Repository, tx core.Transactor, pol *policy.Policy, rstr *roster.Service) *attendance.Service {
	return attendance.NewService(repo, tx, pol, rstr)
}

func newHomeworkService(
	repo homework.Repository,
	tx core.Transactor,
	pol *policy.Policy,
	rstr *roster.Service,
	academics *academic.Service,
	notifications *notification.Service,
) *homework.Service {
	return homework.NewService(repo, tx, pol, rstr, academics, notifications)
}

func newExamService(
	repo exam.Repository,
	tx core.Transactor,
	pol *policy.Policy,
	rstr *roster.Service,
	notifications *notification.Service,
) *exam.Service {
	return exam.NewService(repo, tx, pol, rstr, notifications)
}

func newFeeService(
	repo fee.Repository,
	tx core.Transactor,
	pol *policy.Policy,
	rstr *roster.Service,
	notifications *notification.Service,
) *fee.Service {
	return fee.NewService(repo, tx, pol, rstr, notifications)
}

func newAnnouncementService(
	repo announcement.Repository,
	tx core.Transactor,
	pol *policy.Policy,
	users *user.Service,
	academics *academic.Service,
	rstr *roster.Service,
	notifications *notification.Service,
) *announcement.Service {
	return announcement.NewService(repo, tx, pol, users, academics, rstr, notifications)
}

type dashboardParams struct {
	dig.In

	Users         *user.Service
	Academics     *academic.Service
	Roster        *roster.Service
	Attendance    *attendance.Service
	Homework      *homework.Service
	Exams         *exam.Service
	Fees          *fee.Service
	Notifications *notification.Service
}

func newDashboardService(p dashboardParams) *dashboard.Service {
	return dashboard.NewService(dashboard.Deps{
		Users:         p.Users,
		Academics:     p.Academics,
		Roster:        p.Roster,
		Attendance:    p.Attendance,
		Homework:      p.Homework,
		Exams:         p.Exams,
		Fees:          p.Fees,
		Notifications: p.Notifications,
	})
}

// Jobs

func newFeeReminder(
	fees *fee.Service,
	rstr *roster.Service,
	users *user.Service,
	notifications *notification.Service,
	mailSvc core.EmailService,
	logger core.Logger,
) *jobs.FeeReminder {
	return jobs.NewFeeReminder(fees, rstr, users, notifications, mailSvc, logger)
}

// API

type serverParams struct {
	dig.In

	Conf       *core.Config
	Logger     core.Logger
	Validate   *validator.Validate
	Translator ut.Translator
	Policy     *policy.Policy
	Blobs      core.BlobStore
	Hub        *realtime.Hub

	Users         *user.Service
	Academics     *academic.Service
	Roster        *roster.Service
	Attendance    *attendance.Service
	Homework      *homework.Service
	Exams         *exam.Service
	Fees          *fee.Service
	Announcements *announcement.Service
	Notifications *notification.Service
	Dashboard     *dashboard.Service
}

func newServerDeps(p serverParams) echoapi.ServerDeps {
	return echoapi.ServerDeps{
		Conf:            p.Conf,
		Logger:          p.Logger,
		Validate:        p.Validate,
		Translator:      p.Translator,
		Policy:          p.Policy,
		Blobs:           p.Blobs,
		Hub:             p.Hub,
		UserSvc:         p.Users,
		AcademicSvc:     p.Academics,
		RosterSvc:       p.Roster,
		AttendanceSvc:   p.Attendance,
		HomeworkSvc:     p.Homework,
		ExamSvc:         p.Exams,
		FeeSvc:          p.Fees,
		AnnouncementSvc: p.Announcements,
		NotificationSvc: p.Notifications,
		DashboardSvc:    p.Dashboard,
	}
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newDB))
	must(c.Provide(newEmailService))
	must(c.Provide(newTranslator))
	must(c.Provide(newValidator))
	must(c.Provide(blob.NewDiskStore, dig.As(new(core.BlobStore))))
	must(c.Provide(realtime.NewHub))

	// Record Store
	must(c.Provide(sqlxrepos.NewUserRepository, dig.As(new(user.Repository))))
	must(c.Provide(sqlxrepos.NewPolicyFacts, dig.As(new(policy.Facts))))
	must(c.Provide(sqlxrepos.NewAcademicRepository, dig.As(new(academic.Repository))))
	must(c.Provide(sqlxrepos.NewRosterRepository, dig.As(new(roster.Repository))))
	must(c.Provide(sqlxrepos.NewAttendanceRepository, dig.As(new(attendance.Repository))))
	must(c.Provide(sqlxrepos.NewHomeworkRepository, dig.As(new(homework.Repository))))
	must(c.Provide(sqlxrepos.NewExamRepository, dig.As(new(exam.Repository))))
	must(c.Provide(sqlxrepos.NewFeeRepository, dig.As(new(fee.Repository))))
	must(c.Provide(sqlxrepos.NewAnnouncementRepository, dig.As(new(announcement.Repository))))
	must(c.Provide(sqlxrepos.NewNotificationRepository, dig.As(new(notification.Repository))))

	// Services
	must(c.Provide(policy.New))
	must(c.Provide(user.NewService))
	must(c.Provide(newNotificationService))
	must(c.Provide(newAcademicService))
	must(c.Provide(newRosterService))
	must(c.Provide(newAttendanceService))
	must(c.Provide(newHomeworkService))
	must(c.Provide(newExamService))
	must(c.Provide(newFeeService))
	must(c.Provide(newAnnouncementService))
	must(c.Provide(newDashboardService))

	// Jobs
	must(c.Provide(newFeeReminder))
	must(c.Provide(jobs.NewScheduler))

	must(c.Provide(newServerDeps))
	must(c.Provide(echoapi.NewServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
