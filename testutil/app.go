package testutil

import (
	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

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
	"github.com/trezcool/campus/services/email"
	"github.com/trezcool/campus/storage/database/inmem"
)

// App wires every service over an in-memory Record Store.
type App struct {
	DB         *inmemdb.DB
	Conf       *core.Config
	Logger     *Logger
	Mailer     *emailsvc.ConsoleService
	Pusher     *Pusher
	Validate   *validator.Validate
	Translator ut.Translator
	Policy     *policy.Policy

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

func NewTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}

// NewValidator returns a validator with every custom validation registered.
func NewValidator(translator ut.Translator) *validator.Validate {
	validate := validator.New()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	attendance.InitValidators(validate, translator)
	return validate
}

func NewApp() *App {
	app := &App{
		DB:         inmemdb.NewDB(),
		Conf:       core.NewTestConfig(),
		Logger:     new(Logger),
		Pusher:     new(Pusher),
		Translator: NewTranslator(),
	}
	app.Validate = NewValidator(app.Translator)
	app.Mailer = emailsvc.NewConsoleServiceMock(app.Conf, app.Logger)
	core.ParseEmailTemplates(app.Conf, app.Logger)
	user.LoadCommonPasswords(app.Logger)

	db := app.DB
	app.Policy = policy.New(inmemdb.NewPolicyFacts(db))
	app.Users = user.NewService(inmemdb.NewUserRepository(db), app.Mailer, app.Conf, app.Logger)
	app.Notifications = notification.NewService(inmemdb.NewNotificationRepository(db), app.Pusher, app.Logger)
	app.Academics = academic.NewService(inmemdb.NewAcademicRepository(db), db, app.Policy, app.Users)
	app.Roster = roster.NewService(inmemdb.NewRosterRepository(db), db, app.Policy, app.Users, app.Academics, app.Notifications)
	app.Attendance = attendance.NewService(inmemdb.NewAttendanceRepository(db), db, app.Policy, app.Roster)
	app.Homework = homework.NewService(inmemdb.NewHomeworkRepository(db), db, app.Policy, app.Roster, app.Academics, app.Notifications)
	app.Exams = exam.NewService(inmemdb.NewExamRepository(db), db, app.Policy, app.Roster, app.Notifications)
	app.Fees = fee.NewService(inmemdb.NewFeeRepository(db), db, app.Policy, app.Roster, app.Notifications)
	app.Announcements = announcement.NewService(
		inmemdb.NewAnnouncementRepository(db),
		db,
		app.Policy,
		app.Users,
		app.Academics,
		app.Roster,
		app.Notifications,
	)
	app.Dashboard = dashboard.NewService(dashboard.Deps{
		Users:         app.Users,
		Academics:     app.Academics,
		Roster:        app.Roster,
		Attendance:    app.Attendance,
		Homework:      app.Homework,
		Exams:         app.Exams,
		Fees:          app.Fees,
		Notifications: app.Notifications,
	})
	return app
}
