package main

import (
	"embed"

	"github.com/wailsapp/wails/v2"
	"github.com/wailsapp/wails/v2/pkg/menu"
	"github.com/wailsapp/wails/v2/pkg/menu/keys"
	"github.com/wailsapp/wails/v2/pkg/options"
	"github.com/wailsapp/wails/v2/pkg/options/assetserver"
	"github.com/wailsapp/wails/v2/pkg/runtime"
	"go.uber.org/zap"

	"github.com/cdtdelta/4n6graph/internal/config"
	"github.com/cdtdelta/4n6graph/internal/version"
)

//go:embed all:frontend/dist
var assets embed.FS

func main() {
	cfg, err := config.Load(config.New(""))
	if err != nil {
		println("Config error:", err.Error())
		cfg = config.Default()
	}
	log, err := cfg.Log.NewLogger()
	if err != nil {
		log = zap.NewNop()
	}

	app := NewApp(cfg, log)

	appMenu := menu.NewMenu()

	fileMenu := appMenu.AddSubmenu("File")
	fileMenu.AddText("Open Database", keys.CmdOrCtrl("o"), func(cd *menu.CallbackData) {
		runtime.EventsEmit(app.ctx, "menu:open-database")
	})
	fileMenu.AddText("Import Telemetry", keys.CmdOrCtrl("i"), func(cd *menu.CallbackData) {
		runtime.EventsEmit(app.ctx, "menu:import-telemetry")
	})
	fileMenu.AddSeparator()
	fileMenu.AddText("Close Database", keys.CmdOrCtrl("w"), func(cd *menu.CallbackData) {
		runtime.EventsEmit(app.ctx, "menu:close-database")
	})
	fileMenu.AddSeparator()
	fileMenu.AddText("Export Links", keys.CmdOrCtrl("e"), func(cd *menu.CallbackData) {
		runtime.EventsEmit(app.ctx, "menu:export-csv")
	})
	fileMenu.AddSeparator()
	fileMenu.AddText("Quit", keys.CmdOrCtrl("q"), func(cd *menu.CallbackData) {
		runtime.Quit(app.ctx)
	})

	editMenu := appMenu.AddSubmenu("Edit")
	editMenu.AddText("Cut", keys.CmdOrCtrl("x"), nil)
	editMenu.AddText("Copy", keys.CmdOrCtrl("c"), nil)
	editMenu.AddText("Paste", keys.CmdOrCtrl("v"), nil)
	editMenu.AddText("Select All", keys.CmdOrCtrl("a"), nil)

	viewMenu := appMenu.AddSubmenu("View")
	viewMenu.AddText("Group by Host", keys.CmdOrCtrl("g"), func(cd *menu.CallbackData) {
		runtime.EventsEmit(app.ctx, "menu:toggle-grouping")
	})
	viewMenu.AddText("Dropped Records...", keys.CmdOrCtrl("d"), func(cd *menu.CallbackData) {
		runtime.EventsEmit(app.ctx, "menu:diagnostics")
	})

	err = wails.Run(&options.App{
		Title:  "4n6graph v" + version.Version + " - Forensic Activity Graph",
		Width:  1400,
		Height: 900,
		Menu:   appMenu,
		AssetServer: &assetserver.Options{
			Assets: assets,
		},
		OnStartup:  app.startup,
		OnShutdown: app.shutdown,
		Bind: []interface{}{
			app,
		},
	})

	if err != nil {
		println("Error:", err.Error())
	}
}
