// Package postgres implements the PostgreSQL persistence layer for RianHub.
package postgres

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 001: CREATE LEARNERS
// ══════════════════════════════════════════════════════════════════════════════

const migration001Up = `
-- Migration: Create learners table
-- Version: 001

CREATE TABLE IF NOT EXISTS learners (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    email VARCHAR(254) NOT NULL UNIQUE,
    password_hash VARCHAR(100) NOT NULL,
    display_name VARCHAR(100) NOT NULL,
    role VARCHAR(20) NOT NULL DEFAULT 'learner',
    status VARCHAR(20) NOT NULL DEFAULT 'active',
    current_xp INTEGER NOT NULL DEFAULT 0,
    current_streak INTEGER NOT NULL DEFAULT 0,
    best_streak INTEGER NOT NULL DEFAULT 0,
    last_activity_at TIMESTAMP WITH TIME ZONE,
    last_active_day VARCHAR(10) NOT NULL DEFAULT '',
    deleted_at TIMESTAMP WITH TIME ZONE,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    -- Localization and notification settings (JSONB for flexibility)
    preferences JSONB NOT NULL DEFAULT '{
        "language": "th",
        "timezone": "Asia/Bangkok",
        "level_ups": true,
        "achievements": true,
        "streak_reminders": true,
        "mastery_reminders": true,
        "course_news": true,
        "quiet_hours_start": 22,
        "quiet_hours_end": 8
    }'::jsonb,

    CONSTRAINT valid_role CHECK (role IN ('learner', 'author', 'admin')),
    CONSTRAINT valid_status CHECK (status IN ('active', 'inactive', 'suspended')),
    CONSTRAINT valid_xp CHECK (current_xp >= 0),
    CONSTRAINT valid_streaks CHECK (current_streak >= 0 AND best_streak >= current_streak)
);

CREATE INDEX IF NOT EXISTS idx_learners_email ON learners(email);
CREATE INDEX IF NOT EXISTS idx_learners_status ON learners(status) WHERE deleted_at IS NULL;
CREATE INDEX IF NOT EXISTS idx_learners_current_xp ON learners(current_xp DESC) WHERE deleted_at IS NULL;
CREATE INDEX IF NOT EXISTS idx_learners_last_activity ON learners(last_activity_at);
`

const migration001Down = `
DROP TABLE IF EXISTS learners CASCADE;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 002: CREATE COURSES
// ══════════════════════════════════════════════════════════════════════════════

const migration002Up = `
-- Migration: Create courses, lessons, enrollments and lesson progress
-- Version: 002

CREATE TABLE IF NOT EXISTS courses (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    author_id UUID NOT NULL REFERENCES learners(id),
    title JSONB NOT NULL,
    description JSONB NOT NULL,
    level VARCHAR(2) NOT NULL,
    status VARCHAR(20) NOT NULL DEFAULT 'draft',
    published_at TIMESTAMP WITH TIME ZONE,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_course_status CHECK (status IN ('draft', 'published', 'archived')),
    CONSTRAINT valid_level CHECK (level IN ('A1', 'A2', 'B1', 'B2', 'C1', 'C2'))
);

CREATE INDEX IF NOT EXISTS idx_courses_status ON courses(status);
CREATE INDEX IF NOT EXISTS idx_courses_author ON courses(author_id);
CREATE INDEX IF NOT EXISTS idx_courses_level ON courses(level) WHERE status = 'published';

CREATE TABLE IF NOT EXISTS lessons (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    course_id UUID NOT NULL REFERENCES courses(id) ON DELETE CASCADE,
    position INTEGER NOT NULL,
    title JSONB NOT NULL,
    body JSONB NOT NULL,
    competency_ids TEXT[] NOT NULL DEFAULT '{}',
    estimated_minutes INTEGER NOT NULL DEFAULT 0,
    archived BOOLEAN NOT NULL DEFAULT FALSE,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_position CHECK (position >= 1),
    UNIQUE(course_id, position) DEFERRABLE INITIALLY DEFERRED
);

CREATE INDEX IF NOT EXISTS idx_lessons_course ON lessons(course_id, position);

CREATE TABLE IF NOT EXISTS enrollments (
    learner_id UUID NOT NULL REFERENCES learners(id) ON DELETE CASCADE,
    course_id UUID NOT NULL REFERENCES courses(id) ON DELETE CASCADE,
    enrolled_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    PRIMARY KEY (learner_id, course_id)
);

CREATE INDEX IF NOT EXISTS idx_enrollments_course ON enrollments(course_id);

CREATE TABLE IF NOT EXISTS lesson_progress (
    learner_id UUID NOT NULL REFERENCES learners(id) ON DELETE CASCADE,
    course_id UUID NOT NULL REFERENCES courses(id) ON DELETE CASCADE,
    lesson_id UUID NOT NULL REFERENCES lessons(id) ON DELETE CASCADE,
    state VARCHAR(20) NOT NULL DEFAULT 'started',
    time_spent_seconds BIGINT NOT NULL DEFAULT 0,
    started_at TIMESTAMP WITH TIME ZONE,
    completed_at TIMESTAMP WITH TIME ZONE,
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    PRIMARY KEY (learner_id, lesson_id),
    CONSTRAINT valid_progress_state CHECK (state IN ('started', 'completed'))
);

CREATE INDEX IF NOT EXISTS idx_lesson_progress_course ON lesson_progress(learner_id, course_id);
CREATE INDEX IF NOT EXISTS idx_lesson_progress_lesson ON lesson_progress(lesson_id);
`

const migration002Down = `
DROP TABLE IF EXISTS lesson_progress CASCADE;
DROP TABLE IF EXISTS enrollments CASCADE;
DROP TABLE IF EXISTS lessons CASCADE;
DROP TABLE IF EXISTS courses CASCADE;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 003: CREATE QUIZZES
// ══════════════════════════════════════════════════════════════════════════════

const migration003Up = `
-- Migration: Create quizzes, questions and attempts
-- Version: 003

CREATE TABLE IF NOT EXISTS quizzes (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    lesson_id UUID NOT NULL REFERENCES lessons(id) ON DELETE CASCADE,
    course_id UUID NOT NULL REFERENCES courses(id) ON DELETE CASCADE,
    title JSONB NOT NULL,
    pass_threshold DECIMAL(4,3) NOT NULL DEFAULT 0.700,
    time_limit_seconds BIGINT NOT NULL DEFAULT 0,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_threshold CHECK (pass_threshold >= 0 AND pass_threshold <= 1)
);

CREATE INDEX IF NOT EXISTS idx_quizzes_lesson ON quizzes(lesson_id);

CREATE TABLE IF NOT EXISTS questions (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    quiz_id UUID NOT NULL REFERENCES quizzes(id) ON DELETE CASCADE,
    position INTEGER NOT NULL,
    type VARCHAR(20) NOT NULL,
    prompt JSONB NOT NULL,
    competency_id VARCHAR(100) NOT NULL,
    points INTEGER NOT NULL,
    difficulty DECIMAL(4,3) NOT NULL DEFAULT 0.500,

    -- Type-specific payload: options, true answer, numeric answer and
    -- tolerance, accepted text answers.
    answer_spec JSONB NOT NULL DEFAULT '{}'::jsonb,

    CONSTRAINT valid_question_type CHECK (type IN ('single_choice', 'multi_choice', 'true_false', 'numeric', 'short_text')),
    CONSTRAINT valid_points CHECK (points > 0),
    CONSTRAINT valid_difficulty CHECK (difficulty >= 0 AND difficulty <= 1),
    UNIQUE(quiz_id, position) DEFERRABLE INITIALLY DEFERRED
);

CREATE INDEX IF NOT EXISTS idx_questions_quiz ON questions(quiz_id, position);
CREATE INDEX IF NOT EXISTS idx_questions_competency ON questions(competency_id);

CREATE TABLE IF NOT EXISTS quiz_attempts (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    quiz_id UUID NOT NULL REFERENCES quizzes(id) ON DELETE CASCADE,
    learner_id UUID NOT NULL REFERENCES learners(id) ON DELETE CASCADE,
    number INTEGER NOT NULL,
    status VARCHAR(20) NOT NULL DEFAULT 'in_progress',
    answers JSONB NOT NULL DEFAULT '[]'::jsonb,
    score INTEGER NOT NULL DEFAULT 0,
    max_score INTEGER NOT NULL DEFAULT 0,
    score_ratio DECIMAL(5,4) NOT NULL DEFAULT 0,
    passed BOOLEAN NOT NULL DEFAULT FALSE,
    results JSONB NOT NULL DEFAULT '[]'::jsonb,
    started_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    submitted_at TIMESTAMP WITH TIME ZONE,

    CONSTRAINT valid_attempt_status CHECK (status IN ('in_progress', 'graded', 'abandoned'))
);

CREATE INDEX IF NOT EXISTS idx_attempts_learner ON quiz_attempts(learner_id, submitted_at DESC);
CREATE INDEX IF NOT EXISTS idx_attempts_quiz ON quiz_attempts(learner_id, quiz_id);

-- One in-flight attempt per learner and quiz
CREATE UNIQUE INDEX IF NOT EXISTS idx_attempts_in_flight
    ON quiz_attempts(learner_id, quiz_id) WHERE status = 'in_progress';
`

const migration003Down = `
DROP TABLE IF EXISTS quiz_attempts CASCADE;
DROP TABLE IF EXISTS questions CASCADE;
DROP TABLE IF EXISTS quizzes CASCADE;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 004: CREATE MASTERY
// ══════════════════════════════════════════════════════════════════════════════

const migration004Up = `
-- Migration: Create competencies and mastery records
-- Version: 004

CREATE TABLE IF NOT EXISTS competencies (
    id VARCHAR(100) PRIMARY KEY,
    name JSONB NOT NULL,
    prerequisite_ids TEXT[] NOT NULL DEFAULT '{}',
    decay_half_life_seconds BIGINT NOT NULL DEFAULT 0,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS mastery_records (
    learner_id UUID NOT NULL REFERENCES learners(id) ON DELETE CASCADE,
    competency_id VARCHAR(100) NOT NULL REFERENCES competencies(id) ON DELETE CASCADE,
    value DECIMAL(6,5) NOT NULL DEFAULT 0,
    peak DECIMAL(6,5) NOT NULL DEFAULT 0,
    state VARCHAR(20) NOT NULL DEFAULT 'untouched',
    attempts INTEGER NOT NULL DEFAULT 0,
    correct_count INTEGER NOT NULL DEFAULT 0,
    last_practiced_at TIMESTAMP WITH TIME ZONE,
    mastered_at TIMESTAMP WITH TIME ZONE,
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    PRIMARY KEY (learner_id, competency_id),
    CONSTRAINT valid_mastery_state CHECK (state IN ('untouched', 'learning', 'proficient', 'mastered', 'rusty')),
    CONSTRAINT valid_value CHECK (value >= 0 AND value <= 1),
    CONSTRAINT valid_counts CHECK (correct_count >= 0 AND correct_count <= attempts)
);

CREATE INDEX IF NOT EXISTS idx_mastery_learner ON mastery_records(learner_id);
CREATE INDEX IF NOT EXISTS idx_mastery_competency ON mastery_records(competency_id);
CREATE INDEX IF NOT EXISTS idx_mastery_stale
    ON mastery_records(last_practiced_at) WHERE state IN ('learning', 'proficient', 'mastered');
`

const migration004Down = `
DROP TABLE IF EXISTS mastery_records CASCADE;
DROP TABLE IF EXISTS competencies CASCADE;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 005: CREATE ENGAGEMENT
// ══════════════════════════════════════════════════════════════════════════════

const migration005Up = `
-- Migration: Create XP ledger, achievement awards, leaderboard snapshots
-- and notifications
-- Version: 005

CREATE TABLE IF NOT EXISTS xp_ledger (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    learner_id UUID NOT NULL REFERENCES learners(id) ON DELETE CASCADE,
    amount INTEGER NOT NULL,
    reason VARCHAR(50) NOT NULL,
    source_id VARCHAR(150) NOT NULL DEFAULT '',
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT positive_amount CHECK (amount > 0),
    -- One award per reason and source; keeps event replays idempotent
    UNIQUE(learner_id, reason, source_id)
);

CREATE INDEX IF NOT EXISTS idx_xp_ledger_learner ON xp_ledger(learner_id, created_at DESC);

CREATE TABLE IF NOT EXISTS achievement_awards (
    learner_id UUID NOT NULL REFERENCES learners(id) ON DELETE CASCADE,
    achievement_id VARCHAR(50) NOT NULL,
    awarded_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    PRIMARY KEY (learner_id, achievement_id)
);

CREATE TABLE IF NOT EXISTS leaderboard_snapshots (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    scope VARCHAR(100) NOT NULL,
    snapshot_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    total_learners INTEGER NOT NULL DEFAULT 0,
    total_xp BIGINT NOT NULL DEFAULT 0,
    entries JSONB NOT NULL DEFAULT '[]'::jsonb
);

CREATE INDEX IF NOT EXISTS idx_snapshots_scope ON leaderboard_snapshots(scope, snapshot_at DESC);

CREATE TABLE IF NOT EXISTS notifications (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    learner_id UUID NOT NULL REFERENCES learners(id) ON DELETE CASCADE,
    kind VARCHAR(50) NOT NULL,
    priority SMALLINT NOT NULL DEFAULT 2,
    title JSONB NOT NULL,
    body JSONB NOT NULL,
    data JSONB NOT NULL DEFAULT '{}'::jsonb,
    status VARCHAR(20) NOT NULL DEFAULT 'pending',
    deferred_until TIMESTAMP WITH TIME ZONE,
    delivered_at TIMESTAMP WITH TIME ZONE,
    read_at TIMESTAMP WITH TIME ZONE,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_notification_status CHECK (status IN ('pending', 'deferred', 'delivered', 'skipped'))
);

CREATE INDEX IF NOT EXISTS idx_notifications_learner ON notifications(learner_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_notifications_due
    ON notifications(deferred_until) WHERE status IN ('pending', 'deferred');
CREATE INDEX IF NOT EXISTS idx_notifications_unread
    ON notifications(learner_id) WHERE status = 'delivered' AND read_at IS NULL;
`

const migration005Down = `
DROP TABLE IF EXISTS notifications CASCADE;
DROP TABLE IF EXISTS leaderboard_snapshots CASCADE;
DROP TABLE IF EXISTS achievement_awards CASCADE;
DROP TABLE IF EXISTS xp_ledger CASCADE;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 006: CREATE PLATFORM
// ══════════════════════════════════════════════════════════════════════════════

const migration006Up = `
-- Migration: Create xAPI statements, sync tables, analytics rollups and
-- tutor chat sessions
-- Version: 006

CREATE TABLE IF NOT EXISTS xapi_statements (
    id UUID PRIMARY KEY,
    actor_key VARCHAR(300) NOT NULL,
    verb_id VARCHAR(300) NOT NULL,
    activity_id VARCHAR(300) NOT NULL DEFAULT '',
    statement JSONB NOT NULL,
    voided BOOLEAN NOT NULL DEFAULT FALSE,
    stored_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    occurred_at TIMESTAMP WITH TIME ZONE NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_xapi_actor ON xapi_statements(actor_key, stored_at DESC);
CREATE INDEX IF NOT EXISTS idx_xapi_verb ON xapi_statements(verb_id);
CREATE INDEX IF NOT EXISTS idx_xapi_activity ON xapi_statements(activity_id) WHERE activity_id != '';
CREATE INDEX IF NOT EXISTS idx_xapi_stored_at ON xapi_statements(stored_at);

CREATE TABLE IF NOT EXISTS sync_devices (
    id VARCHAR(100) PRIMARY KEY,
    learner_id UUID NOT NULL REFERENCES learners(id) ON DELETE CASCADE,
    platform VARCHAR(20) NOT NULL,
    name VARCHAR(100) NOT NULL DEFAULT '',
    last_seq BIGINT NOT NULL DEFAULT 0,
    cursor BIGINT NOT NULL DEFAULT 0,
    last_sync_at TIMESTAMP WITH TIME ZONE,
    registered_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_platform CHECK (platform IN ('android', 'ios', 'web'))
);

CREATE INDEX IF NOT EXISTS idx_sync_devices_learner ON sync_devices(learner_id);

CREATE TABLE IF NOT EXISTS sync_operations (
    device_id VARCHAR(100) NOT NULL REFERENCES sync_devices(id) ON DELETE CASCADE,
    seq BIGINT NOT NULL,
    applied_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    PRIMARY KEY (device_id, seq)
);

CREATE TABLE IF NOT EXISTS sync_changes (
    cursor BIGSERIAL PRIMARY KEY,
    learner_id UUID NOT NULL REFERENCES learners(id) ON DELETE CASCADE,
    entity VARCHAR(30) NOT NULL,
    entity_id VARCHAR(150) NOT NULL,
    payload JSONB NOT NULL,
    changed_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_sync_changes_learner ON sync_changes(learner_id, cursor);

CREATE TABLE IF NOT EXISTS sync_conflicts (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    learner_id UUID NOT NULL REFERENCES learners(id) ON DELETE CASCADE,
    device_id VARCHAR(100) NOT NULL,
    seq BIGINT NOT NULL,
    kind VARCHAR(30) NOT NULL,
    entity_id VARCHAR(150) NOT NULL DEFAULT '',
    resolution VARCHAR(20) NOT NULL,
    detail TEXT NOT NULL DEFAULT '',
    occurred_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_sync_conflicts_learner ON sync_conflicts(learner_id, occurred_at DESC);

CREATE TABLE IF NOT EXISTS daily_rollups (
    learner_id UUID NOT NULL REFERENCES learners(id) ON DELETE CASCADE,
    day VARCHAR(10) NOT NULL,
    lessons_completed INTEGER NOT NULL DEFAULT 0,
    quizzes_taken INTEGER NOT NULL DEFAULT 0,
    quizzes_passed INTEGER NOT NULL DEFAULT 0,
    xp_gained INTEGER NOT NULL DEFAULT 0,
    active_minutes INTEGER NOT NULL DEFAULT 0,
    statements INTEGER NOT NULL DEFAULT 0,
    computed_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    PRIMARY KEY (learner_id, day)
);

CREATE INDEX IF NOT EXISTS idx_rollups_day ON daily_rollups(day);

CREATE TABLE IF NOT EXISTS chat_sessions (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    learner_id UUID NOT NULL REFERENCES learners(id) ON DELETE CASCADE,
    course_id UUID,
    language VARCHAR(2) NOT NULL DEFAULT 'th',
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_chat_sessions_learner ON chat_sessions(learner_id, updated_at DESC);

CREATE TABLE IF NOT EXISTS chat_messages (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    session_id UUID NOT NULL REFERENCES chat_sessions(id) ON DELETE CASCADE,
    role VARCHAR(20) NOT NULL,
    content TEXT NOT NULL,
    degraded BOOLEAN NOT NULL DEFAULT FALSE,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_role CHECK (role IN ('learner', 'assistant'))
);

CREATE INDEX IF NOT EXISTS idx_chat_messages_session ON chat_messages(session_id, created_at);
`

const migration006Down = `
DROP TABLE IF EXISTS chat_messages CASCADE;
DROP TABLE IF EXISTS chat_sessions CASCADE;
DROP TABLE IF EXISTS daily_rollups CASCADE;
DROP TABLE IF EXISTS sync_conflicts CASCADE;
DROP TABLE IF EXISTS sync_changes CASCADE;
DROP TABLE IF EXISTS sync_operations CASCADE;
DROP TABLE IF EXISTS sync_devices CASCADE;
DROP TABLE IF EXISTS xapi_statements CASCADE;
`
