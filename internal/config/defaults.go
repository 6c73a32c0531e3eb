package config

func Defaults() *Config {
	return &Config{
		General: GeneralConfig{
			LogLevel: "info",
		},
		Account: AccountConfig{
			Username: "${DM_USERNAME}",
			Password: "${DM_PASSWORD}",
		},
		Friend: FriendConfig{
			Username: "${DM_FRIEND_USERNAME}",
		},
		Archive: ArchiveConfig{
			DataDir: "~/.dmarchive/data",
		},
		Sync: SyncConfig{
			ReelPolicy:       "skip",
			MaxItemsFirstRun: 50000,
		},
		RunLog: RunLogConfig{
			Enabled: true,
			DBPath:  "~/.dmarchive/runs.db",
		},
		Notify: NotifyConfig{
			Telegram: TelegramNotifyConfig{
				Enabled: false,
			},
		},
	}
}
