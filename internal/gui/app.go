package gui

import (
	"log/slog"
	"os/exec"

	"ecg-deid/internal/config"
	"ecg-deid/internal/svgdoc"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"
)

const (
	AppTitle  = "ECG De-identification Tool"
	AppWidth  = 650
	AppHeight = 600
)

// App represents the GUI application
type App struct {
	fyneApp    fyne.App
	mainWindow fyne.Window
	wizard     *Wizard
	steps      *StepBuilder

	cfg    config.Config
	logger *slog.Logger

	mutoolStatus *widget.Button
}

// NewApp creates a new GUI application. cfg pre-fills the wizard fields.
func NewApp(cfg config.Config, logger *slog.Logger) *App {
	if logger == nil {
		logger = slog.Default()
	}
	a := app.New()
	a.SetIcon(theme.DocumentIcon())
	a.Settings().SetTheme(&ModernTheme{})

	return &App{
		fyneApp: a,
		cfg:     cfg,
		logger:  logger,
	}
}

// Run starts the GUI application
func (a *App) Run() {
	a.mainWindow = a.fyneApp.NewWindow(AppTitle)
	a.mainWindow.Resize(fyne.NewSize(AppWidth, AppHeight))
	a.mainWindow.CenterOnScreen()

	a.wizard = NewWizard(a.mainWindow)

	a.wizard.SetStatusIndicator(a.createMutoolStatus())

	a.steps = NewStepBuilder(a.mainWindow, a.wizard, a.cfg, a.logger)
	a.wizard.SetOnStop(a.steps.Cancel)

	a.wizard.SetStepContent(StepInput, a.steps.BuildStep1())
	a.wizard.SetStepContent(StepSettings, a.steps.BuildStep2())
	a.wizard.SetStepContent(StepPreview, a.steps.BuildStep3())
	a.wizard.SetStepContent(StepProcess, a.steps.BuildStep4())

	a.wizard.SetCanProceed(func(step WizardStep) bool {
		switch step {
		case StepInput:
			return a.steps.ValidateStep1()
		case StepSettings:
			return a.steps.ValidateStep2()
		case StepPreview:
			return a.steps.dryRunComplete
		case StepProcess:
			// On process step, "Done" closes the app
			if !a.steps.IsProcessing() {
				a.mainWindow.Close()
			}
			return false
		}
		return true
	})

	a.wizard.SetOnStepChange(func(step WizardStep) {
		switch step {
		case StepPreview:
			a.steps.RunDryRun()
		case StepProcess:
			a.steps.RunProcess()
		}
	})

	a.wizard.SetOnMutoolMissing(func(proceed func()) {
		dialog.ShowConfirm("mutool Not Installed",
			"mutool (MuPDF) is not installed, so reports cannot be converted.\n\nYou can still preview key coverage. Continue to the preview?",
			func(confirmed bool) {
				if confirmed {
					proceed()
				}
			}, a.mainWindow)
	})

	content := a.wizard.Build()
	a.mainWindow.SetContent(content)

	// Confirm before closing if processing
	a.mainWindow.SetCloseIntercept(func() {
		if a.steps.IsProcessing() {
			dialog.ShowConfirm("Confirm Exit",
				"Processing is in progress. Are you sure you want to exit?",
				func(confirm bool) {
					if confirm {
						a.steps.Cancel()
						a.mainWindow.Close()
					}
				}, a.mainWindow)
		} else {
			a.mainWindow.Close()
		}
	})

	a.mainWindow.ShowAndRun()
}

// mutoolPath resolves the configured binary, or searches the usual places.
func (a *App) mutoolPath() (string, bool) {
	if a.cfg.Render.Mutool != "" {
		path, err := exec.LookPath(a.cfg.Render.Mutool)
		return path, err == nil
	}
	return svgdoc.FindMutool()
}

func (a *App) isMutoolInstalled() bool {
	_, ok := a.mutoolPath()
	return ok
}

func (a *App) createMutoolStatus() fyne.CanvasObject {
	a.mutoolStatus = widget.NewButton("", a.showMutoolDialog)
	a.mutoolStatus.Importance = widget.LowImportance
	a.refreshMutoolStatus()
	return a.mutoolStatus
}

// refreshMutoolStatus detects mutool again and updates the footer and wizard.
func (a *App) refreshMutoolStatus() bool {
	installed := a.isMutoolInstalled()
	if installed {
		a.mutoolStatus.SetIcon(theme.ConfirmIcon())
		a.mutoolStatus.SetText("mutool: OK")
	} else {
		a.mutoolStatus.SetIcon(theme.WarningIcon())
		a.mutoolStatus.SetText("mutool: Missing")
	}
	if a.wizard != nil {
		a.wizard.SetMutoolInstalled(installed)
	}
	return installed
}

// showMutoolDialog explains where mutool was found, or how to install it.
// Installation is left to the user; "Check again" picks up a new install.
func (a *App) showMutoolDialog() {
	message := widget.NewLabel("")
	message.Wrapping = fyne.TextWrapWord
	describe := func() {
		if path, ok := a.mutoolPath(); ok {
			message.SetText("Reports are converted with " + path + ".")
			return
		}
		hint := svgdoc.MutoolInstallCommand()
		if hint == "" {
			hint = "Install the MuPDF command line tools and make sure mutool is on PATH."
		}
		message.SetText("mutool (MuPDF) is needed to convert ECG reports to SVG.\n\n" + hint)
	}
	describe()

	check := widget.NewButton("Check again", func() {
		a.refreshMutoolStatus()
		describe()
	})

	d := dialog.NewCustom("mutool", "Close", container.NewVBox(message, check), a.mainWindow)
	d.Resize(fyne.NewSize(420, 220))
	d.Show()
}
