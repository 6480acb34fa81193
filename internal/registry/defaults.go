package registry

import "path/filepath"

// venvPython is the interpreter location inside a Windows virtualenv, which is
// how the subapps are deployed.
var venvPython = filepath.Join(".venv", "Scripts", "python.exe")

// Default returns the built-in debutade catalog rooted at baseDir.
func Default(baseDir string, port int) (*Registry, error) {
	return New(port,
		AppDescriptor{
			ID:          "bankrekening",
			Name:        "Bankrekening transacties",
			Description: "Beheer bank- en spaarrekening",
			Dir:         filepath.Join(baseDir, "project-debutade-bankrekening - v2"),
			Script:      "webapp.py",
			Interpreter: venvPython,
		},
		AppDescriptor{
			ID:          "kasboek",
			Name:        "Kasboek beheer",
			Description: "Bijhouden van Debutade kas",
			Dir:         filepath.Join(baseDir, "project-debutade-kasboek"),
			Script:      "webapp.py",
			Interpreter: venvPython,
		},
		AppDescriptor{
			ID:          "bontoevoegen",
			Name:        "Bon toevoegen",
			Description: "Voeg bonnen en URLs toe aan transacties",
			Dir:         filepath.Join(baseDir, "project-debutade-bontoevoegen"),
			Script:      "voegbontoe_webapp.py",
			Interpreter: venvPython,
		},
		AppDescriptor{
			ID:          "showreport",
			Name:        "Show rapport",
			Description: "Power BI rapportage",
			Dir:         filepath.Join(baseDir, "project-debutade-showreport"),
			Script:      "webapp.py",
			Interpreter: venvPython,
		},
		AppDescriptor{
			ID:          "contributie",
			Name:        "Contributie overzicht",
			Description: "Koppelt contributies aan leden",
			Dir:         filepath.Join(baseDir, "project-debutade-contributie"),
			Script:      "webapp.py",
			Interpreter: venvPython,
		},
	)
}
