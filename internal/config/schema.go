package config

// Schema is the JSON Schema the process config is validated against
// before decoding.
const Schema = `
{
  "type": "object",
  "properties": {
    "nats": {
      "type": "object",
      "properties": {
        "address":  { "type": "string" },
        "bdclSubject": { "type": "string" },
        "sclSubject":  { "type": "string" },
        "historySubject": { "type": "string" },
        "username": { "type": "string" },
        "password": { "type": "string" },
        "credsFilePath": { "type": "string" }
      },
      "required": ["address", "bdclSubject", "sclSubject"]
    },
    "dcm": {
      "type": "object",
      "properties": {
        "baseUrl": { "type": "string" },
        "reconnectInterval": { "type": "string" },
        "outboundQueueLimit": { "type": "integer", "minimum": 1 }
      },
      "required": ["baseUrl"]
    },
    "bleRtls": {
      "type": "object",
      "properties": {
        "configPath": { "type": "string" },
        "rereadInterval": { "type": "string" }
      }
    },
    "history": {
      "type": "object",
      "properties": {
        "subject": { "type": "string" },
        "database": { "type": "string" }
      }
    },
    "metricsListenAddr": { "type": "string" },
    "logLevel": { "type": "string" }
  },
  "required": ["nats", "dcm"]
}
`
