package main

import "time"

// GlobalFlags holds persistent flags shared by all client commands.
type GlobalFlags struct {
	ConfigPath string
	APIUrl     string
	APITimeout time.Duration
}

// ServeFlags configures the serve command.
type ServeFlags struct {
	ConfigPath string
	Daemonize  bool
	PidFile    string
	LogFile    string
}

type StartFlags struct {
	InstallPath string
	Profile     string
	Params      []string
}

type RestartFlags struct {
	CountdownSeconds int
}

type ScheduleFlags struct {
	At          string
	In          time.Duration
	InstallPath string
	Profile     string
}

type RconConnectFlags struct {
	Host     string
	Port     int
	Password string
}

type InstallFlags struct {
	InstallPath  string
	SteamCmdPath string
	Update       bool
}
