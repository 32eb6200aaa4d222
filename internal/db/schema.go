package db

const schemaSQLite = `
CREATE TABLE IF NOT EXISTS tests (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  title TEXT NOT NULL,
  duration_minutes INTEGER NOT NULL,
  source TEXT NOT NULL DEFAULT 'json',
  source_key TEXT NOT NULL DEFAULT '',
  created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS questions (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  test_id INTEGER NOT NULL REFERENCES tests(id) ON DELETE CASCADE,
  seq_no INTEGER NOT NULL,
  question_text TEXT NOT NULL,
  question_type TEXT NOT NULL,
  explanation TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS options (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  question_id INTEGER NOT NULL REFERENCES questions(id) ON DELETE CASCADE,
  seq_no INTEGER NOT NULL,
  option_text TEXT NOT NULL,
  is_correct INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS attempts (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  test_id INTEGER NOT NULL REFERENCES tests(id) ON DELETE CASCADE,
  user_name TEXT NOT NULL,
  score INTEGER NOT NULL DEFAULT 0,
  total_questions INTEGER NOT NULL,
  percentage REAL NOT NULL DEFAULT 0,
  key_fingerprint TEXT NOT NULL DEFAULT '',
  attempted_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS attempt_answers (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  attempt_id INTEGER NOT NULL REFERENCES attempts(id) ON DELETE CASCADE,
  question_id INTEGER NOT NULL,
  seq_no INTEGER NOT NULL,
  question_text TEXT NOT NULL,
  explanation TEXT NOT NULL DEFAULT '',
  selected_json TEXT NOT NULL,
  correct_json TEXT NOT NULL,
  options_json TEXT NOT NULL DEFAULT '[]',
  is_correct INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_questions_test ON questions(test_id, seq_no);
CREATE INDEX IF NOT EXISTS idx_options_question ON options(question_id, seq_no);
CREATE INDEX IF NOT EXISTS idx_attempts_test ON attempts(test_id, attempted_at);
CREATE INDEX IF NOT EXISTS idx_attempt_answers_attempt ON attempt_answers(attempt_id, seq_no);
`

const schemaPostgres = `
CREATE TABLE IF NOT EXISTS tests (
  id BIGSERIAL PRIMARY KEY,
  title TEXT NOT NULL,
  duration_minutes INTEGER NOT NULL,
  source TEXT NOT NULL DEFAULT 'json',
  source_key TEXT NOT NULL DEFAULT '',
  created_at BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS questions (
  id BIGSERIAL PRIMARY KEY,
  test_id BIGINT NOT NULL REFERENCES tests(id) ON DELETE CASCADE,
  seq_no INTEGER NOT NULL,
  question_text TEXT NOT NULL,
  question_type TEXT NOT NULL,
  explanation TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS options (
  id BIGSERIAL PRIMARY KEY,
  question_id BIGINT NOT NULL REFERENCES questions(id) ON DELETE CASCADE,
  seq_no INTEGER NOT NULL,
  option_text TEXT NOT NULL,
  is_correct BOOLEAN NOT NULL DEFAULT FALSE
);

CREATE TABLE IF NOT EXISTS attempts (
  id BIGSERIAL PRIMARY KEY,
  test_id BIGINT NOT NULL REFERENCES tests(id) ON DELETE CASCADE,
  user_name TEXT NOT NULL,
  score INTEGER NOT NULL DEFAULT 0,
  total_questions INTEGER NOT NULL,
  percentage DOUBLE PRECISION NOT NULL DEFAULT 0,
  key_fingerprint TEXT NOT NULL DEFAULT '',
  attempted_at BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS attempt_answers (
  id BIGSERIAL PRIMARY KEY,
  attempt_id BIGINT NOT NULL REFERENCES attempts(id) ON DELETE CASCADE,
  question_id BIGINT NOT NULL,
  seq_no INTEGER NOT NULL,
  question_text TEXT NOT NULL,
  explanation TEXT NOT NULL DEFAULT '',
  selected_json TEXT NOT NULL,
  correct_json TEXT NOT NULL,
  options_json TEXT NOT NULL DEFAULT '[]',
  is_correct BOOLEAN NOT NULL DEFAULT FALSE
);

CREATE INDEX IF NOT EXISTS idx_questions_test ON questions(test_id, seq_no);
CREATE INDEX IF NOT EXISTS idx_options_question ON options(question_id, seq_no);
CREATE INDEX IF NOT EXISTS idx_attempts_test ON attempts(test_id, attempted_at);
CREATE INDEX IF NOT EXISTS idx_attempt_answers_attempt ON attempt_answers(attempt_id, seq_no);
`
