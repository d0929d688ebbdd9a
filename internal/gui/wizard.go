package gui

import (
	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"
)

// WizardStep represents a step in the wizard
type WizardStep int

const (
	StepInput WizardStep = iota
	StepSettings
	StepPreview
	StepProcess
)

var stepTitles = []string{"Input", "Settings", "Preview", "Process"}

// stepMarker is the circle and caption drawn for one step in the header.
type stepMarker struct {
	circle *canvas.Circle
	label  *canvas.Text
}

func (m stepMarker) set(fill, stroke, text fyne.ThemeColorName) {
	t := &ModernTheme{}
	m.circle.FillColor = t.Color(fill, theme.VariantDark)
	m.circle.StrokeColor = t.Color(stroke, theme.VariantDark)
	m.label.Color = t.Color(text, theme.VariantDark)
	m.circle.Refresh()
	m.label.Refresh()
}

// Wizard drives the four-step flow: navigation buttons, the step header and
// the content area.
type Wizard struct {
	window      fyne.Window
	currentStep WizardStep

	stepContents map[WizardStep]fyne.CanvasObject
	markers      []stepMarker

	backButton *widget.Button
	nextButton *widget.Button
	stopButton *widget.Button

	contentContainer *fyne.Container
	stepIndicator    fyne.CanvasObject
	statusIndicator  fyne.CanvasObject

	mutoolInstalled bool

	onStepChange    func(WizardStep)
	canProceed      func(WizardStep) bool
	onMutoolMissing func(proceed func())
	onStop          func()
}

// NewWizard creates a new wizard instance
func NewWizard(window fyne.Window) *Wizard {
	w := &Wizard{
		window:       window,
		currentStep:  StepInput,
		stepContents: make(map[WizardStep]fyne.CanvasObject),
	}

	w.backButton = widget.NewButton("Back", w.Previous)
	w.backButton.Disable()
	w.nextButton = widget.NewButton("Next", w.Next)
	w.nextButton.Importance = widget.HighImportance
	w.stopButton = widget.NewButton("Stop", func() {
		if w.onStop != nil {
			w.stopButton.Disable()
			w.onStop()
		}
	})
	w.stopButton.Importance = widget.DangerImportance
	w.stopButton.Hide()

	w.createStepIndicator()
	return w
}

func (w *Wizard) createStepIndicator() {
	var items []fyne.CanvasObject
	for i, title := range stepTitles {
		circle := canvas.NewCircle(ColorStepInactive)
		circle.StrokeWidth = 2
		label := canvas.NewText(title, ColorTextSecondary)
		label.TextSize = 12
		label.Alignment = fyne.TextAlignCenter
		w.markers = append(w.markers, stepMarker{circle: circle, label: label})

		items = append(items, container.NewVBox(
			container.NewCenter(container.New(&fixedLayout{width: 24, height: 24}, circle)),
			container.NewCenter(label),
		))
		if i < len(stepTitles)-1 {
			line := canvas.NewRectangle(ColorBorder)
			items = append(items, container.New(&fixedLayout{width: 40, height: 24, lineY: 11, lineH: 2}, line))
		}
	}
	w.stepIndicator = container.NewHBox(items...)
	w.updateStepIndicator()
}

// fixedLayout sizes its objects to a fixed box. With lineH set the objects
// are drawn as a horizontal line at lineY.
type fixedLayout struct {
	width, height float32
	lineY, lineH  float32
}

func (l *fixedLayout) MinSize([]fyne.CanvasObject) fyne.Size {
	return fyne.NewSize(l.width, l.height)
}

func (l *fixedLayout) Layout(objects []fyne.CanvasObject, _ fyne.Size) {
	for _, o := range objects {
		if l.lineH > 0 {
			o.Resize(fyne.NewSize(l.width, l.lineH))
			o.Move(fyne.NewPos(0, l.lineY))
			continue
		}
		o.Resize(fyne.NewSize(l.width, l.height))
		o.Move(fyne.NewPos(0, 0))
	}
}

func (w *Wizard) updateStepIndicator() {
	for i, m := range w.markers {
		switch step := WizardStep(i); {
		case step < w.currentStep:
			m.set(theme.ColorNameSuccess, theme.ColorNameSuccess, theme.ColorNameForeground)
		case step == w.currentStep:
			m.set(theme.ColorNamePrimary, theme.ColorNamePrimary, theme.ColorNameForeground)
		default:
			m.set(theme.ColorNameScrollBar, theme.ColorNameSeparator, theme.ColorNamePlaceHolder)
		}
	}
}

// SetStepContent sets the content for a specific step
func (w *Wizard) SetStepContent(step WizardStep, content fyne.CanvasObject) {
	w.stepContents[step] = content
}

// SetOnStepChange sets the callback for when the step changes
func (w *Wizard) SetOnStepChange(callback func(WizardStep)) {
	w.onStepChange = callback
}

// SetCanProceed sets the validation callback for step transitions
func (w *Wizard) SetCanProceed(callback func(WizardStep) bool) {
	w.canProceed = callback
}

// SetOnStop sets the callback for the Stop button shown while processing.
func (w *Wizard) SetOnStop(callback func()) {
	w.onStop = callback
}

// SetStatusIndicator sets an optional status indicator to display in the footer
func (w *Wizard) SetStatusIndicator(indicator fyne.CanvasObject) {
	w.statusIndicator = indicator
}

// SetMutoolInstalled updates the mutool installation status
func (w *Wizard) SetMutoolInstalled(installed bool) {
	w.mutoolInstalled = installed
	w.updateNavButtons()
}

// SetOnMutoolMissing sets the callback for when the user leaves the settings
// step without mutool. proceed continues to the preview, which does not
// render reports.
func (w *Wizard) SetOnMutoolMissing(callback func(proceed func())) {
	w.onMutoolMissing = callback
}

// IsMutoolInstalled returns whether mutool is installed
func (w *Wizard) IsMutoolInstalled() bool {
	return w.mutoolInstalled
}

// Next moves to the next step
func (w *Wizard) Next() {
	if w.canProceed != nil && !w.canProceed(w.currentStep) {
		return
	}

	if w.currentStep == StepSettings && !w.mutoolInstalled && w.onMutoolMissing != nil {
		w.onMutoolMissing(func() {
			w.GoToStep(StepPreview)
		})
		return
	}

	if w.currentStep < StepProcess {
		w.GoToStep(w.currentStep + 1)
	}
}

// Previous moves to the previous step
func (w *Wizard) Previous() {
	if w.currentStep > StepInput {
		w.GoToStep(w.currentStep - 1)
	}
}

// GoToStep navigates to a specific step
func (w *Wizard) GoToStep(step WizardStep) {
	if step < StepInput || step > StepProcess {
		return
	}

	w.currentStep = step
	w.updateStepIndicator()
	w.updateNavButtons()
	w.updateContent()

	if w.onStepChange != nil {
		w.onStepChange(step)
	}
}

func (w *Wizard) updateNavButtons() {
	if w.currentStep == StepInput {
		w.backButton.Disable()
	} else {
		w.backButton.Enable()
	}

	w.stopButton.Hide()
	switch w.currentStep {
	case StepProcess:
		w.nextButton.SetText("Done")
		w.nextButton.Disable() // enabled when processing completes
		if w.onStop != nil {
			w.stopButton.Enable()
			w.stopButton.Show()
		}
	case StepPreview:
		w.nextButton.SetText("Process")
		if !w.mutoolInstalled {
			w.nextButton.Disable()
		}
	default:
		w.nextButton.SetText("Next")
		w.nextButton.Enable()
	}
}

func (w *Wizard) updateContent() {
	if w.contentContainer == nil {
		return
	}
	w.contentContainer.Objects = nil
	if content, ok := w.stepContents[w.currentStep]; ok {
		w.contentContainer.Objects = []fyne.CanvasObject{content}
	}
	w.contentContainer.Refresh()
}

// SetNextEnabled enables or disables the next button
func (w *Wizard) SetNextEnabled(enabled bool) {
	if enabled {
		w.nextButton.Enable()
	} else {
		w.nextButton.Disable()
	}
}

// SetNextText sets the text of the next button
func (w *Wizard) SetNextText(text string) {
	w.nextButton.SetText(text)
}

// SetBackEnabled enables or disables the back button
func (w *Wizard) SetBackEnabled(enabled bool) {
	if enabled && w.currentStep > StepInput {
		w.backButton.Enable()
	} else {
		w.backButton.Disable()
	}
}

// SetStopVisible shows or hides the Stop button.
func (w *Wizard) SetStopVisible(visible bool) {
	if visible && w.onStop != nil {
		w.stopButton.Show()
	} else {
		w.stopButton.Hide()
	}
}

// Build creates the complete wizard UI
func (w *Wizard) Build() fyne.CanvasObject {
	w.contentContainer = container.NewStack()
	if content, ok := w.stepContents[w.currentStep]; ok {
		w.contentContainer.Objects = []fyne.CanvasObject{content}
	}

	contentBg := canvas.NewRectangle(ColorCardBackground)
	contentBg.CornerRadius = 8
	contentCard := container.NewStack(contentBg, container.NewPadded(w.contentContainer))

	separator := canvas.NewRectangle(ColorBorder)
	separator.SetMinSize(fyne.NewSize(0, 1))

	var center fyne.CanvasObject = container.NewCenter(w.stopButton)
	if w.statusIndicator != nil {
		center = container.NewCenter(container.NewHBox(w.statusIndicator, w.stopButton))
	}
	footer := container.NewBorder(nil, nil, w.backButton, w.nextButton, center)

	return container.NewBorder(
		container.NewVBox(
			container.NewPadded(container.NewCenter(w.stepIndicator)),
			separator,
		),
		container.NewPadded(footer),
		nil, nil,
		container.NewPadded(contentCard),
	)
}
