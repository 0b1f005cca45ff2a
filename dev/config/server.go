package config

// SERVER_YML is the server config used with --dev
const SERVER_YML = `
snapcron:
  cron:
    timeZone: "America/Toronto"
  listener:
    port: 3000
  scheduler:
    scanInterval: 10m
    lookahead: 10m
    leaseTTL: 11m
    concurrency: 10

database:
  driver: sqlite
  connectAttempts: 3

lock:
  backend: database
  redis:
    addr: "localhost:6379"
    db: 0

snapshot:
  webhookURL:
  requestsPerSecond: 5
  burst: 1
  timeout: 10s
  deliveryAttempts: 4
  workers: 2

google:
  storage:
    bucket: "snapcron"
    prefix: "snapcron-dev"
    sqliteBackupSchedule: "*/30 * * * *"
    enableSqliteBackupAndSync: false
  applicationCredentials:
`
